package alliance

import (
	"log/slog"
	"sync"
)

// Queue defers reactive work by one scheduling tick. Faction-created and
// member-joined reactions must not run in the handler that observes them,
// because the originating event can fire before the new faction or
// membership is fully visible in the registry.
//
// Drain swaps the pending list out before executing, so actions enqueued
// during a drain run in the next cycle, never the current one. A panic in
// one action is logged and never aborts its siblings. There is no
// cancellation: once enqueued, an action always eventually runs.
type Queue struct {
	mu      sync.Mutex
	pending []queued
}

type queued struct {
	name string
	run  func()
}

// NewQueue creates an empty deferred-action queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Defer enqueues an action for the next drain. Safe to call from any
// goroutine and from inside a running action.
func (q *Queue) Defer(name string, run func()) {
	q.mu.Lock()
	q.pending = append(q.pending, queued{name: name, run: run})
	q.mu.Unlock()
}

// Drain executes every action enqueued before this call, in FIFO order.
// Called once per tick by the world loop.
func (q *Queue) Drain() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, a := range batch {
		runIsolated(a)
	}
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func runIsolated(a queued) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("deferred action panicked", "action", a.name, "panic", r)
		}
	}()
	a.run()
}
