package playback

import (
	"context"
	"log/slog"
	"sync"
)

// LoadFunc loads one preview's metadata and returns once it is ready or
// has failed.
type LoadFunc func(ctx context.Context, id ID) error

// Queue loads previews strictly one at a time, in enqueue order, so a page
// never opens more than one preview download at once. Item N+1 is not
// started before item N's LoadFunc has returned.
type Queue struct {
	load LoadFunc

	mu     sync.Mutex
	closed bool
	items  chan ID
	done   chan struct{}
}

// NewQueue starts the worker. backlog bounds how many pending items may
// wait before Enqueue blocks.
func NewQueue(ctx context.Context, load LoadFunc, backlog int) *Queue {
	q := &Queue{
		load:  load,
		items: make(chan ID, max(backlog, 0)),
		done:  make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-q.items:
			if !ok {
				return
			}
			if err := q.load(ctx, id); err != nil {
				slog.Debug("playback: preview load failed", "id", id, "error", err)
			}
		}
	}
}

// Enqueue adds a preview. It blocks while the backlog is full and returns
// false once the queue is closed or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, id ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.items <- id:
		return true
	case <-ctx.Done():
		return false
	case <-q.done:
		return false
	}
}

// Close stops accepting items and waits for the pending ones to load.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()
	<-q.done
}
