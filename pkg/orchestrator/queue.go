package orchestrator

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// sentinelT is the distinguished end-of-utterance marker (§3, §4.2). It is a
// distinct type so it can never collide with a legitimate payload, however
// one is encoded.
type sentinelT struct{}

// Sentinel is pushed to the text-stream and audio-output queues to mark
// end-of-utterance.
var Sentinel = sentinelT{}

// IsSentinel reports whether v is the end-of-utterance marker.
func IsSentinel(v interface{}) bool {
	_, ok := v.(sentinelT)
	return ok
}

// Queue is a bounded, blocking, cancellable FIFO of capacity cap, backed by
// a gammazero/deque ring buffer for O(1) push/pop. Put blocks while the
// queue is full; Get blocks while it is empty; both unblock immediately on
// ctx cancellation. Clear is an atomic drain (§4.2) usable concurrently with
// blocked Put/Get callers — they simply observe more room or no items.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    deque.Deque[interface{}]
	cap      int
}

// NewQueue creates a queue with the given bounded capacity.
func NewQueue(capacity int) *Queue {
	q := &Queue{cap: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Put blocks until there is room for v or ctx is done. A background watcher
// wakes blocked waiters on cancellation since sync.Cond has no native
// context support.
func (q *Queue) Put(ctx context.Context, v interface{}) error {
	stop := q.watchCtx(ctx)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() >= q.cap {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.notFull.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	q.items.PushBack(v)
	q.notEmpty.Signal()
	return nil
}

// Get blocks until an item is available or ctx is done.
func (q *Queue) Get(ctx context.Context) (interface{}, error) {
	stop := q.watchCtx(ctx)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.notEmpty.Wait()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	v := q.items.PopFront()
	q.notFull.Signal()
	return v, nil
}

// Clear atomically drops every queued item in one critical section (§4.2).
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items.Clear()
	q.mu.Unlock()
	q.notFull.Broadcast()
}

// HasItems reports whether the queue currently holds anything.
func (q *Queue) HasItems() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len() > 0
}

// Len returns the current queue depth, mostly for tests and diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// watchCtx spawns a goroutine that broadcasts on both conditions once ctx is
// done, waking any Wait() loop so it can observe ctx.Err() and return. The
// returned stop func must be called once the blocking operation completes to
// avoid leaking the goroutine.
func (q *Queue) watchCtx(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.notFull.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	return func() { close(done) }
}
