package session

import (
	"context"
	"sync"

	"simutrador-go/internal/protocol"
)

// eventQueue is an unbounded FIFO. Pushes never block, so the receive loop
// can always make progress; consumers drain remaining items before seeing a
// terminal error.
type eventQueue struct {
	mu    sync.Mutex
	items []any
	err   error
	wake  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{})}
}

func (q *eventQueue) push(v any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.items = append(q.items, v)
	close(q.wake)
	q.wake = make(chan struct{})
}

// fail marks the queue terminal. Already-queued items remain consumable.
func (q *eventQueue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.err = err
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *eventQueue) pop(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		err := q.err
		wake := q.wake
		q.mu.Unlock()
		if err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// TickQueue feeds tick events for one session to an independent consumer.
type TickQueue struct{ q *eventQueue }

// Next blocks until a tick arrives, the context is done, or the connection
// ends. Remaining buffered ticks are still delivered after connection close.
func (t *TickQueue) Next(ctx context.Context) (protocol.Tick, error) {
	v, err := t.q.pop(ctx)
	if err != nil {
		return protocol.Tick{}, err
	}
	return v.(protocol.Tick), nil
}

// FillQueue feeds execution reports for one session.
type FillQueue struct{ q *eventQueue }

func (f *FillQueue) Next(ctx context.Context) (protocol.ExecutionReport, error) {
	v, err := f.q.pop(ctx)
	if err != nil {
		return protocol.ExecutionReport{}, err
	}
	return v.(protocol.ExecutionReport), nil
}

// AccountQueue feeds account snapshots for one session.
type AccountQueue struct{ q *eventQueue }

func (a *AccountQueue) Next(ctx context.Context) (protocol.AccountSnapshot, error) {
	v, err := a.q.pop(ctx)
	if err != nil {
		return protocol.AccountSnapshot{}, err
	}
	return v.(protocol.AccountSnapshot), nil
}
