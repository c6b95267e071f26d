// Package refs reads loose and packed refs from a git directory.
package refs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/logging"
)

// MaxSymrefDepth bounds how many "ref:" indirections are followed
const MaxSymrefDepth = 5

// searchRules are git's rev-parse expansions for a short ref name
var searchRules = []string{
	"%s",
	"refs/%s",
	"refs/tags/%s",
	"refs/heads/%s",
	"refs/remotes/%s",
	"refs/remotes/%s/HEAD",
}

type packedRef struct {
	target object.ID
	peeled *object.ID
}

// Store implements ports.RefStore over a git directory
type Store struct {
	gitDir string
	logger zerolog.Logger

	packedOnce sync.Once
	packed     map[string]packedRef
	packedErr  error
}

var _ ports.RefStore = (*Store)(nil)

// NewStore creates a ref store for gitDir
func NewStore(gitDir string, logger zerolog.Logger) *Store {
	return &Store{gitDir: gitDir, logger: logger.With().Str(logging.FieldComponent, "refs").Logger()}
}

// Resolve tries name as a full object id, then through the search rules
func (s *Store) Resolve(ctx context.Context, name string) (object.ID, bool, error) {
	if len(name) == object.HexSize {
		if id, err := object.ParseID(name); err == nil {
			return id, true, nil
		}
	}
	if !validName(name) {
		return object.ZeroID, false, nil
	}

	for _, rule := range searchRules {
		if err := ctx.Err(); err != nil {
			return object.ZeroID, false, err
		}
		if rule == "%s" && !strings.HasPrefix(name, "refs/") && !isPseudoRef(name) {
			// files such as config or index are not refs
			continue
		}
		full := fmt.Sprintf(rule, name)
		id, ok, err := s.read(full, 0)
		if err != nil {
			return object.ZeroID, false, err
		}
		if ok {
			s.logger.Debug().Str(logging.FieldEvent, "refs.resolve").Str("name", name).Str("ref", full).Str(logging.FieldID, id.String()).Msg("resolved ref")
			return id, true, nil
		}
	}
	return object.ZeroID, false, nil
}

// isPseudoRef matches top-level refs like HEAD, ORIG_HEAD or FETCH_HEAD
func isPseudoRef(name string) bool {
	for _, r := range name {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return name != ""
}

// validName rejects names that could escape the git directory
func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// read resolves one fully qualified ref, following symbolic refs
func (s *Store) read(name string, depth int) (object.ID, bool, error) {
	if depth > MaxSymrefDepth {
		return object.ZeroID, false, &domain.OpError{Op: "refs.read", Kind: domain.KindCorrupt, Path: name, Err: fmt.Errorf("symbolic ref chain deeper than %d", MaxSymrefDepth)}
	}

	content, ok, err := s.readLoose(name)
	if err != nil {
		return object.ZeroID, false, err
	}
	if ok {
		if target, sym := symbolicTarget(content); sym {
			return s.read(target, depth+1)
		}
		id, err := object.ParseID(content)
		if err != nil {
			return object.ZeroID, false, &domain.OpError{Op: "refs.read", Kind: domain.KindCorrupt, Path: filepath.Join(s.gitDir, name), Err: err}
		}
		return id, true, nil
	}

	packed, err := s.packedRefs()
	if err != nil {
		return object.ZeroID, false, err
	}
	if p, ok := packed[name]; ok {
		return p.target, true, nil
	}
	return object.ZeroID, false, nil
}

// readLoose returns the trimmed contents of a loose ref file
func (s *Store) readLoose(name string) (string, bool, error) {
	p := filepath.Join(s.gitDir, filepath.FromSlash(name))
	data, err := os.ReadFile(p)
	if err == nil {
		return strings.TrimSpace(string(data)), true, nil
	}
	// a directory such as refs/heads is not a ref
	if errors.Is(err, fs.ErrNotExist) || isDir(p) {
		return "", false, nil
	}
	return "", false, &domain.OpError{Op: "refs.read", Kind: domain.KindIO, Path: p, Err: err}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func symbolicTarget(content string) (string, bool) {
	target, ok := strings.CutPrefix(content, "ref:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(target), true
}

func (s *Store) packedRefs() (map[string]packedRef, error) {
	s.packedOnce.Do(func() {
		s.packed, s.packedErr = parsePackedRefs(filepath.Join(s.gitDir, "packed-refs"))
	})
	return s.packed, s.packedErr
}

// parsePackedRefs reads "<hex> <name>" lines; a "^<hex>" line records
// the peeled target of the ref above it
func parsePackedRefs(p string) (map[string]packedRef, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]packedRef{}, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindIO, Path: p, Err: err}
	}

	refs := make(map[string]packedRef)
	last := ""
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "^"):
			if last == "" {
				return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindCorrupt, Path: p, Err: fmt.Errorf("line %d: peeled entry without a ref", n)}
			}
			id, err := object.ParseID(line[1:])
			if err != nil {
				return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindCorrupt, Path: p, Err: fmt.Errorf("line %d: %w", n, err)}
			}
			r := refs[last]
			r.peeled = &id
			refs[last] = r
			last = ""
		default:
			hexID, name, ok := strings.Cut(line, " ")
			if !ok || name == "" {
				return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindCorrupt, Path: p, Err: fmt.Errorf("line %d: malformed entry %q", n, line)}
			}
			id, err := object.ParseID(hexID)
			if err != nil {
				return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindCorrupt, Path: p, Err: fmt.Errorf("line %d: %w", n, err)}
			}
			refs[name] = packedRef{target: id}
			last = name
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.OpError{Op: "refs.packed", Kind: domain.KindIO, Path: p, Err: err}
	}
	return refs, nil
}

// List returns every ref under refs/, loose entries shadowing packed ones
func (s *Store) List(ctx context.Context) ([]ports.Ref, error) {
	packed, err := s.packedRefs()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]ports.Ref, len(packed))
	for name, p := range packed {
		byName[name] = ports.Ref{Name: name, Target: p.target, Peeled: p.peeled}
	}

	root := filepath.Join(s.gitDir, "refs")
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return &domain.OpError{Op: "refs.list", Kind: domain.KindIO, Path: p, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.gitDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		content, ok, err := s.readLoose(name)
		if err != nil || !ok {
			return err
		}
		ref := ports.Ref{Name: name}
		if target, sym := symbolicTarget(content); sym {
			ref.Symbolic = target
			id, found, err := s.read(target, 1)
			if err != nil {
				return err
			}
			if !found {
				s.logger.Warn().Str(logging.FieldEvent, "refs.dangling").Str("ref", name).Str("target", target).Msg("symbolic ref points nowhere")
				return nil
			}
			ref.Target = id
		} else {
			id, err := object.ParseID(content)
			if err != nil {
				s.logger.Warn().Str(logging.FieldEvent, "refs.skip").Str("ref", name).Err(err).Msg("ignoring malformed ref")
				return nil
			}
			ref.Target = id
		}
		byName[name] = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ports.Ref, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Head returns the ref HEAD names, or "" when HEAD is detached
func (s *Store) Head(_ context.Context) (string, error) {
	content, ok, err := s.readLoose("HEAD")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &domain.OpError{Op: "refs.head", Kind: domain.KindNotFound, Path: filepath.Join(s.gitDir, "HEAD"), Err: domain.ErrNotFound}
	}
	if target, sym := symbolicTarget(content); sym {
		return target, nil
	}
	return "", nil
}
