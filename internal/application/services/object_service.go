package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
)

// maxPeelDepth bounds tag-to-tag chains
const maxPeelDepth = 32

// ObjectService resolves revision names and reads objects from every
// backend in order
type ObjectService struct {
	backends []ports.ObjectBackend
	refs     ports.RefStore
	logger   zerolog.Logger
}

var _ ports.ObjectReader = (*ObjectService)(nil)

// NewObjectService creates an object service. Backends are consulted in
// the order given.
func NewObjectService(refs ports.RefStore, logger zerolog.Logger, backends ...ports.ObjectBackend) *ObjectService {
	return &ObjectService{
		backends: backends,
		refs:     refs,
		logger:   logger.With().Str("component", "objects").Logger(),
	}
}

// Get returns id from the first backend that stores it
func (s *ObjectService) Get(ctx context.Context, id object.ID) (*object.Object, error) {
	for _, b := range s.backends {
		ok, err := b.Contains(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		obj, err := b.Read(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", id, b.Name(), err)
		}
		return obj, nil
	}
	return nil, &domain.OpError{Op: "objects.get", Kind: domain.KindNotFound, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
}

// Backend names the backend that holds id
func (s *ObjectService) Backend(ctx context.Context, id object.ID) (string, error) {
	for _, b := range s.backends {
		ok, err := b.Contains(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			return b.Name(), nil
		}
	}
	return "", &domain.OpError{Op: "objects.backend", Kind: domain.KindNotFound, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
}

// Resolve turns a revision such as "HEAD", "v1.0^{tree}" or "3f2a9" into
// an object id
func (s *ObjectService) Resolve(ctx context.Context, rev string) (object.ID, error) {
	name, peel, err := splitPeel(rev)
	if err != nil {
		return object.ZeroID, err
	}

	id, err := s.resolveName(ctx, name)
	if err != nil {
		return object.ZeroID, err
	}
	if peel == nil {
		return id, nil
	}
	return s.Peel(ctx, id, *peel)
}

// splitPeel separates a trailing ^{kind} or ^{} suffix. A nil kind means
// no suffix; KindInvalid means peel tags only.
func splitPeel(rev string) (string, *object.Kind, error) {
	i := strings.LastIndex(rev, "^{")
	if i < 0 || !strings.HasSuffix(rev, "}") {
		return rev, nil, nil
	}
	name, inner := rev[:i], rev[i+2:len(rev)-1]
	if inner == "" {
		k := object.KindInvalid
		return name, &k, nil
	}
	k, err := object.ParseKind(inner)
	if err != nil {
		return "", nil, &domain.OpError{Op: "objects.resolve", Kind: domain.KindInvalidID, Err: fmt.Errorf("%q: unknown peel target %q: %w", rev, inner, domain.ErrInvalidID)}
	}
	return name, &k, nil
}

func (s *ObjectService) resolveName(ctx context.Context, name string) (object.ID, error) {
	if name == "" {
		return object.ZeroID, &domain.OpError{Op: "objects.resolve", Kind: domain.KindInvalidID, Err: fmt.Errorf("empty revision: %w", domain.ErrInvalidID)}
	}

	if s.refs != nil {
		id, ok, err := s.refs.Resolve(ctx, name)
		if err != nil {
			return object.ZeroID, err
		}
		if ok {
			return id, nil
		}
	}

	prefix, err := object.ParsePrefix(name)
	if err != nil {
		return object.ZeroID, &domain.OpError{Op: "objects.resolve", Kind: domain.KindNotFound, Err: fmt.Errorf("unknown revision %q: %w", name, domain.ErrNotFound)}
	}

	matches, err := s.MatchPrefix(ctx, prefix)
	if err != nil {
		return object.ZeroID, err
	}
	switch len(matches) {
	case 0:
		return object.ZeroID, &domain.OpError{Op: "objects.resolve", Kind: domain.KindNotFound, Err: fmt.Errorf("unknown revision %q: %w", name, domain.ErrNotFound)}
	case 1:
		return matches[0], nil
	}

	candidates := make([]string, len(matches))
	for i, id := range matches {
		candidates[i] = id.String()
	}
	s.logger.Debug().Str("event", "objects.ambiguous").Str("prefix", name).Int("candidates", len(matches)).Msg("ambiguous short id")
	return object.ZeroID, &domain.OpError{Op: "objects.resolve", Kind: domain.KindAmbiguous, Err: &domain.AmbiguousError{Prefix: name, Candidates: candidates}}
}

// MatchPrefix collects ids matching prefix across all backends, sorted
func (s *ObjectService) MatchPrefix(ctx context.Context, prefix object.Prefix) ([]object.ID, error) {
	seen := make(map[object.ID]struct{})
	var out []object.ID
	for _, b := range s.backends {
		ids, err := b.MatchPrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}

// Peel follows tags (and a commit's tree) until it reaches an object of
// kind want. KindInvalid peels tags only.
func (s *ObjectService) Peel(ctx context.Context, id object.ID, want object.Kind) (object.ID, error) {
	cur := id
	for range maxPeelDepth {
		obj, err := s.Get(ctx, cur)
		if err != nil {
			return object.ZeroID, err
		}
		if obj.Kind == want || (want == object.KindInvalid && obj.Kind != object.KindTag) {
			return cur, nil
		}

		switch obj.Kind {
		case object.KindTag:
			tag, err := object.ParseTag(obj.Data)
			if err != nil {
				return object.ZeroID, err
			}
			cur = tag.Object
		case object.KindCommit:
			if want != object.KindTree {
				return object.ZeroID, peelError(id, obj.Kind, want)
			}
			commit, err := object.ParseCommit(obj.Data)
			if err != nil {
				return object.ZeroID, err
			}
			cur = commit.Tree
		default:
			return object.ZeroID, peelError(id, obj.Kind, want)
		}
	}
	return object.ZeroID, &domain.OpError{Op: "objects.peel", Kind: domain.KindCorrupt, Err: fmt.Errorf("%s: tag chain deeper than %d", id, maxPeelDepth)}
}

func peelError(id object.ID, got, want object.Kind) error {
	return &domain.OpError{Op: "objects.peel", Kind: domain.KindInvalidID, Err: fmt.Errorf("%s is a %s, cannot peel to %s: %w", id.Short(7), got, want, domain.ErrInvalidID)}
}

// Commit reads and decodes a commit
func (s *ObjectService) Commit(ctx context.Context, id object.ID) (*object.Commit, error) {
	obj, err := s.expect(ctx, id, object.KindCommit)
	if err != nil {
		return nil, err
	}
	return object.ParseCommit(obj.Data)
}

// Tree reads and decodes a tree
func (s *ObjectService) Tree(ctx context.Context, id object.ID) (*object.Tree, error) {
	obj, err := s.expect(ctx, id, object.KindTree)
	if err != nil {
		return nil, err
	}
	return object.ParseTree(obj.Data)
}

func (s *ObjectService) expect(ctx context.Context, id object.ID, kind object.Kind) (*object.Object, error) {
	obj, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Kind != kind {
		return nil, &domain.OpError{Op: "objects.get", Kind: domain.KindInvalidID, Err: fmt.Errorf("%s is a %s, not a %s: %w", id, obj.Kind, kind, domain.ErrInvalidID)}
	}
	return obj, nil
}

// BaseResolver adapts Get for thin-pack ref-delta bases
func (s *ObjectService) BaseResolver() func(ctx context.Context, id object.ID) (*object.Object, error) {
	return s.Get
}

// IsMissing reports whether err means the object does not exist
func IsMissing(err error) bool {
	return domain.IsKind(err, domain.KindNotFound) || errors.Is(err, domain.ErrNotFound)
}
