package session

import (
	"context"
	"sync"

	"simutrador-go/internal/store"
)

// milestone is a single-resolution future for a one-shot session event.
// It always stores the realized value, so a waiter armed after the event
// arrives still resolves immediately, and a caller timeout does not consume
// the resolution (a later wait call observes the same outcome).
type milestone struct {
	mu   sync.Mutex
	done chan struct{}
	val  any
	err  error
}

func newMilestone() *milestone {
	return &milestone{done: make(chan struct{})}
}

func (m *milestone) resolve(val any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
		return
	default:
	}
	m.val = val
	close(m.done)
}

func (m *milestone) reject(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
		return
	default:
	}
	m.err = err
	close(m.done)
}

func (m *milestone) resolved() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *milestone) wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.val, m.err
}

// sessionState bundles everything the multiplexer tracks per session id:
// the candle store, milestone waiters, and lazily-created fan-out queues.
// Mutation happens only on the receive loop; waiters and subscribers reach
// in through the milestones and queues.
type sessionState struct {
	id      string
	store   *store.Store
	history *milestone // resolves with protocol.HistorySnapshot
	end     *milestone // resolves with protocol.SimulationEnd

	mu       sync.Mutex
	ticks    *eventQueue
	fills    *eventQueue
	accounts *eventQueue

	warm   bool
	ended  bool
	failed error // set on coercion failure; later events for the session drop
}

func newSessionState(id string) *sessionState {
	return &sessionState{
		id:      id,
		history: newMilestone(),
		end:     newMilestone(),
	}
}

// Queue accessors are idempotent: the first caller (producer or consumer)
// creates the queue, later callers get the same one. A queue created after
// the session already failed starts terminal.

func (s *sessionState) tickQueue() *eventQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks == nil {
		s.ticks = s.newQueueLocked()
	}
	return s.ticks
}

func (s *sessionState) fillQueue() *eventQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fills == nil {
		s.fills = s.newQueueLocked()
	}
	return s.fills
}

func (s *sessionState) accountQueue() *eventQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		s.accounts = s.newQueueLocked()
	}
	return s.accounts
}

func (s *sessionState) newQueueLocked() *eventQueue {
	q := newEventQueue()
	if s.failed != nil {
		q.fail(s.failed)
	}
	return q
}

// fail rejects unresolved waiters and terminates the queues with err.
func (s *sessionState) fail(err error) {
	s.history.reject(err)
	s.end.reject(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = err
	}
	for _, q := range []*eventQueue{s.ticks, s.fills, s.accounts} {
		if q != nil {
			q.fail(err)
		}
	}
}
