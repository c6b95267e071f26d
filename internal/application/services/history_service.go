package services

import (
	"container/heap"
	"context"
	"errors"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/object"
)

// ErrStopWalk ends a history walk early without reporting an error
var ErrStopWalk = errors.New("stop walk")

// WalkOptions tunes HistoryService.Walk
type WalkOptions struct {
	// Limit stops after this many commits; zero means no limit
	Limit int
	// FirstParent follows only the first parent of merges
	FirstParent bool
}

// LogEntry is one commit visited by a walk
type LogEntry struct {
	ID     object.ID
	Commit *object.Commit
	When   int64 // committer time, unix seconds
}

// HistoryService walks commit graphs
type HistoryService struct {
	objects *ObjectService
	logger  zerolog.Logger
}

// NewHistoryService creates a history service over objects
func NewHistoryService(objects *ObjectService, logger zerolog.Logger) *HistoryService {
	return &HistoryService{objects: objects, logger: logger.With().Str("component", "history").Logger()}
}

// Walk visits commits reachable from start newest first by committer
// time, each at most once. Returning ErrStopWalk from fn ends the walk.
func (h *HistoryService) Walk(ctx context.Context, start []object.ID, opts WalkOptions, fn func(LogEntry) error) error {
	q := &commitQueue{}
	seen := make(map[object.ID]struct{})

	push := func(id object.ID) error {
		if _, ok := seen[id]; ok {
			return nil
		}
		seen[id] = struct{}{}
		c, err := h.objects.Commit(ctx, id)
		if err != nil {
			return err
		}
		var when int64
		if sig, err := c.CommitterSignature(); err == nil {
			when = sig.When.Unix()
		}
		heap.Push(q, &queued{entry: LogEntry{ID: id, Commit: c, When: when}, seq: q.next})
		q.next++
		return nil
	}

	for _, id := range start {
		if err := push(id); err != nil {
			return err
		}
	}

	visited := 0
	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := heap.Pop(q).(*queued)

		if err := fn(item.entry); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
		visited++
		if opts.Limit > 0 && visited >= opts.Limit {
			break
		}

		parents := item.entry.Commit.Parents
		if opts.FirstParent && len(parents) > 1 {
			parents = parents[:1]
		}
		for _, p := range parents {
			if err := push(p); err != nil {
				return err
			}
		}
	}

	h.logger.Debug().Str("event", "history.walk").Int("visited", visited).Int("queued", q.Len()).Msg("walk finished")
	return nil
}

type queued struct {
	entry LogEntry
	seq   int
}

// commitQueue is a max-heap on committer time; ties go to the commit
// queued first
type commitQueue struct {
	items []*queued
	next  int
}

func (q *commitQueue) Len() int { return len(q.items) }

func (q *commitQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.entry.When != b.entry.When {
		return a.entry.When > b.entry.When
	}
	return a.seq < b.seq
}

func (q *commitQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *commitQueue) Push(x any) { q.items = append(q.items, x.(*queued)) }

func (q *commitQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}
