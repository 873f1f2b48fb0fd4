package session

import (
	"context"
	"errors"
	"sync"

	"github.com/interopae/travel-concierge/backend/internal/model/live"
)

// DefaultQueueCapacity bounds a queue when no capacity is configured.
const DefaultQueueCapacity = 64

var (
	ErrQueueClosed  = errors.New("session queue closed")
	ErrEmptyRequest = errors.New("request carries neither content nor blob")
)

// Queue carries client messages into one live agent session in arrival order.
// Closing it is the signal for the consuming runner to stop.
type Queue struct {
	requests chan live.Request
	done     chan struct{}
	once     sync.Once

	// sendMu serializes producers so concurrent pushes keep call-arrival order.
	sendMu sync.Mutex
}

// NewQueue creates a queue holding at most capacity pending requests.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		requests: make(chan live.Request, capacity),
		done:     make(chan struct{}),
	}
}

// SendContent queues a turn-based content unit.
func (q *Queue) SendContent(ctx context.Context, content *live.Content) error {
	return q.Send(ctx, live.Request{Content: content})
}

// SendRealtime queues a realtime blob such as a PCM audio chunk.
func (q *Queue) SendRealtime(ctx context.Context, blob *live.Blob) error {
	return q.Send(ctx, live.Request{Blob: blob})
}

// Send pushes one request. It blocks while the queue is full and fails with
// ErrQueueClosed once the queue has been closed.
func (q *Queue) Send(ctx context.Context, req live.Request) error {
	if req.Content == nil && req.Blob == nil {
		return ErrEmptyRequest
	}

	q.sendMu.Lock()
	defer q.sendMu.Unlock()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.requests <- req:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests exposes pending requests to the single consumer. Consumers must
// also watch Done, since the channel itself is never closed.
func (q *Queue) Requests() <-chan live.Request {
	return q.requests
}

// Done is closed once the queue is closed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close marks the queue closed. Repeated calls are no-ops.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len returns the number of requests waiting to be consumed.
func (q *Queue) Len() int {
	return len(q.requests)
}
