// Package pack reads git pack files through their version 1 or 2 indexes.
package pack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/logging"
)

// Options configures LoadSet
type Options struct {
	// CacheBytes bounds the shared delta base cache
	CacheBytes int64
	// Concurrency limits how many indexes are parsed at once
	Concurrency int
	Logger      zerolog.Logger
}

var (
	_ ports.ObjectBackend = (*Set)(nil)
	_ ports.PackStats     = (*Set)(nil)
)

// Set is every pack found under one or more objects directories,
// presented as a single object backend
type Set struct {
	packs  []*Pack
	cache  *BaseCache
	logger zerolog.Logger
}

// LoadSet opens objects/pack/*.idx in every directory. An index whose
// .pack is missing is skipped with a warning; any other failure aborts.
func LoadSet(ctx context.Context, objectDirs []string, opts Options) (*Set, error) {
	var idxPaths []string
	for _, dir := range objectDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "pack", "*.idx"))
		if err != nil {
			return nil, &domain.OpError{Op: "pack.loadset", Kind: domain.KindIO, Path: dir, Err: err}
		}
		sort.Strings(matches)
		idxPaths = append(idxPaths, matches...)
	}

	cache, err := NewBaseCache(opts.CacheBytes)
	if err != nil {
		return nil, &domain.OpError{Op: "pack.loadset", Kind: domain.KindInvalidConfig, Err: err}
	}

	opened := make([]*Pack, len(idxPaths))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, path := range idxPaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := Open(path, cache, opts.Logger)
			if domain.IsKind(err, domain.KindNotFound) {
				opts.Logger.Warn().Str(logging.FieldEvent, "pack.skip").Str("index", path).Err(err).Msg("index without pack file")
				return nil
			}
			if err != nil {
				return err
			}
			opened[i] = p
			return nil
		})
	}

	s := &Set{cache: cache, logger: opts.Logger}
	err = g.Wait()
	for _, p := range opened {
		if p != nil {
			s.packs = append(s.packs, p)
		}
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	opts.Logger.Debug().Str(logging.FieldEvent, "pack.loadset").Int("packs", len(s.packs)).Msg("loaded pack indexes")
	return s, nil
}

// Name identifies the backend
func (s *Set) Name() string {
	return "packed"
}

// Packs returns the loaded packs in index path order
func (s *Set) Packs() []*Pack {
	return s.packs
}

// SetBaseResolver installs the lookup thin-pack ref-deltas fall back to
func (s *Set) SetBaseResolver(r BaseResolver) {
	for _, p := range s.packs {
		p.SetResolver(r)
	}
}

// Contains reports whether any pack lists id
func (s *Set) Contains(_ context.Context, id object.ID) (bool, error) {
	for _, p := range s.packs {
		if p.Contains(id) {
			return true, nil
		}
	}
	return false, nil
}

// Read returns id from the first pack that lists it
func (s *Set) Read(ctx context.Context, id object.ID) (*object.Object, error) {
	for _, p := range s.packs {
		if p.Contains(id) {
			return p.Read(ctx, id)
		}
	}
	return nil, &domain.OpError{Op: "pack.read", Kind: domain.KindNotFound, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
}

// MatchPrefix collects prefix matches across packs without duplicates
func (s *Set) MatchPrefix(ctx context.Context, prefix object.Prefix) ([]object.ID, error) {
	seen := make(map[object.ID]struct{})
	var out []object.ID
	for _, p := range s.packs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, id := range p.Index().MatchPrefix(prefix) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// Walk visits every packed id once per pack it appears in
func (s *Set) Walk(ctx context.Context, fn func(object.ID) error) error {
	for _, p := range s.packs {
		idx := p.Index()
		for i := 0; i < idx.Count(); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(idx.ID(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases every pack file and the base cache
func (s *Set) Close() error {
	var errs []error
	for _, p := range s.packs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cache.Close()
	return errors.Join(errs...)
}

// Stats summarizes every loaded pack
func (s *Set) Stats() []ports.PackStat {
	out := make([]ports.PackStat, 0, len(s.packs))
	for _, p := range s.packs {
		out = append(out, statOf(p))
	}
	return out
}

// LocalStats limits Stats to the packs stored under objectDir, leaving
// out packs borrowed from alternates
func (s *Set) LocalStats(objectDir string) ports.PackStats {
	return localStats{set: s, dir: filepath.Join(objectDir, "pack")}
}

type localStats struct {
	set *Set
	dir string
}

func (l localStats) Stats() []ports.PackStat {
	var out []ports.PackStat
	for _, p := range l.set.packs {
		if filepath.Dir(p.Path()) == l.dir {
			out = append(out, statOf(p))
		}
	}
	return out
}

func statOf(p *Pack) ports.PackStat {
	return ports.PackStat{
		Name:       p.Name(),
		Objects:    p.Index().Count(),
		PackBytes:  p.Size(),
		IndexBytes: p.IndexSize(),
	}
}
