package session

import (
	"context"
	"fmt"

	"simutrador-go/internal/metrics"
	"simutrador-go/internal/protocol"
	"simutrador-go/internal/store"
	"simutrador-go/internal/strategy"
)

// recvLoop is the exclusive reader of the transport. Each inbound frame is
// fully dispatched (pending futures, waiters, queues, store updates) before
// the next read; strategy callbacks alone are handed to the dispatcher
// goroutine to keep the reader immune to a callback awaiting its own ack.
func (c *Client) recvLoop() {
	defer close(c.loopDone)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.terminate(ErrClosed)
			} else {
				c.log.Error().Err(err).Msg("receive loop failed")
				c.terminate(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			}
			return
		}
		env, ok := protocol.ParseEnvelope(raw)
		if !ok {
			// Malformed frames are dropped, never fatal.
			c.log.Debug().Msg("dropping malformed frame")
			continue
		}
		metrics.FramesTotal.WithLabelValues(env.Type).Inc()
		c.dispatchEnvelope(env)
	}
}

func (c *Client) dispatchEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSessionCreated:
		c.handleSessionCreated(env)
	case protocol.TypeHistorySnapshot:
		c.handleHistorySnapshot(env)
	case protocol.TypeTick:
		c.handleTick(env)
	case protocol.TypeExecutionReport:
		c.handleExecutionReport(env)
	case protocol.TypeAccountSnapshot:
		c.handleAccountSnapshot(env)
	case protocol.TypeSimulationEnd:
		c.handleSimulationEnd(env)
	case protocol.TypeBatchAck:
		c.handleBatchAck(env)
	case protocol.TypeSessionError, protocol.TypeError:
		c.handleSessionError(env)
	case protocol.TypeConnectionReady, protocol.TypePing, protocol.TypeHeartbeat:
		// Handshake and keepalive frames interleave freely with responses.
	default:
		c.log.Debug().Str("type", env.Type).Msg("ignoring unknown message type")
	}
}

func (c *Client) handleSessionCreated(env protocol.Envelope) {
	ch := c.takePending(env.RequestID)
	if ch == nil {
		return
	}
	created, err := protocol.DecodeSessionCreated(env.Data)
	if err != nil {
		metrics.ProtocolErrorsTotal.Inc()
		ch <- reqOutcome{err: err}
		return
	}
	c.getSession(created.SessionID)
	ch <- reqOutcome{created: &created}
}

func (c *Client) handleHistorySnapshot(env protocol.Envelope) {
	sess := c.liveSession(env.SessionID())
	if sess == nil {
		return
	}
	snap, err := protocol.DecodeHistorySnapshot(env.Data)
	if err != nil {
		c.failSession(sess, err)
		return
	}
	if sess.store == nil {
		sess.store = store.New()
	}
	sess.store.ApplySnapshot(snap)
	if sess.warm {
		// Incremental backfill for an already-warm session extends the
		// store without replaying the start callback.
		return
	}
	sess.warm = true
	sess.history.resolve(snap)
	if c.strat != nil {
		st := sess.store
		sessionID := sess.id
		c.enqueueCallback(sessionID, "on_session_start", func(ctx context.Context) error {
			return c.strat.OnSessionStart(ctx, sessionID, st, snap)
		})
	}
}

func (c *Client) handleTick(env protocol.Envelope) {
	sess := c.liveSession(env.SessionID())
	if sess == nil {
		return
	}
	tick, err := protocol.DecodeTick(env.Data)
	if err != nil {
		c.failSession(sess, err)
		return
	}
	if sess.store == nil {
		sess.store = store.New()
	}
	sess.store.ApplyTick(tick)
	metrics.TicksTotal.WithLabelValues(sess.id).Inc()
	sess.tickQueue().push(tick)

	if c.strat == nil {
		return
	}
	st := sess.store
	sessionID := sess.id
	if decider, ok := c.strat.(strategy.Decider); ok {
		c.enqueueCallback(sessionID, "decide_tick", func(ctx context.Context) error {
			intents, err := decider.DecideTick(ctx, sessionID, tick, st)
			if err != nil {
				return err
			}
			c.adapter.Dispatch(c, sessionID, intents)
			return nil
		})
		return
	}
	c.enqueueCallback(sessionID, "on_tick", func(ctx context.Context) error {
		return c.strat.OnTick(ctx, sessionID, tick, st)
	})
}

func (c *Client) handleExecutionReport(env protocol.Envelope) {
	sess := c.liveSession(env.SessionID())
	if sess == nil {
		return
	}
	rep := protocol.DecodeExecutionReport(env.Data)
	sess.fillQueue().push(rep)
	if c.rec != nil {
		c.rec.Record(rep)
	}
	if c.strat != nil {
		st := sess.store
		sessionID := sess.id
		c.enqueueCallback(sessionID, "on_fill", func(ctx context.Context) error {
			return c.strat.OnFill(ctx, sessionID, rep, st)
		})
	}
}

func (c *Client) handleAccountSnapshot(env protocol.Envelope) {
	sess := c.liveSession(env.SessionID())
	if sess == nil {
		return
	}
	acct := protocol.DecodeAccountSnapshot(env.Data)
	sess.accountQueue().push(acct)
	if c.strat != nil {
		st := sess.store
		sessionID := sess.id
		c.enqueueCallback(sessionID, "on_account_snapshot", func(ctx context.Context) error {
			return c.strat.OnAccountSnapshot(ctx, sessionID, acct, st)
		})
	}
}

func (c *Client) handleSimulationEnd(env protocol.Envelope) {
	sess := c.liveSession(env.SessionID())
	if sess == nil {
		return
	}
	end := protocol.DecodeSimulationEnd(env.Data)
	sess.ended = true
	sess.end.resolve(end)
	if c.strat != nil {
		st := sess.store
		sessionID := sess.id
		c.enqueueCallback(sessionID, "on_session_end", func(ctx context.Context) error {
			return c.strat.OnSessionEnd(ctx, sessionID, end, st)
		})
	}
}

func (c *Client) handleBatchAck(env protocol.Envelope) {
	ch := c.takePending(env.RequestID)
	if ch == nil {
		return
	}
	ack, err := protocol.DecodeBatchAck(env.Data)
	if err != nil {
		metrics.ProtocolErrorsTotal.Inc()
		ch <- reqOutcome{err: err}
		return
	}
	ch <- reqOutcome{ack: &ack}
}

func (c *Client) handleSessionError(env protocol.Envelope) {
	serr := protocol.DecodeSessionError(env.Data)
	if ch := c.takePending(env.RequestID); ch != nil {
		ch <- reqOutcome{err: serr}
	}
	if serr.SessionID == "" {
		return
	}
	// Reject only this session's unresolved waiters; resolved milestones and
	// other sessions are untouched.
	if sess := c.peekSession(serr.SessionID); sess != nil {
		sess.history.reject(serr)
		sess.end.reject(serr)
	}
}

// liveSession resolves the session for a push event, dropping events with no
// session id and events for sessions already failed by a coercion error.
func (c *Client) liveSession(sessionID string) *sessionState {
	if sessionID == "" {
		return nil
	}
	sess := c.getSession(sessionID)
	if sess.failed != nil {
		return nil
	}
	return sess
}

// failSession marks a session unrecoverable (malformed candle data) without
// touching the connection or other sessions.
func (c *Client) failSession(sess *sessionState, err error) {
	metrics.ProtocolErrorsTotal.Inc()
	c.log.Error().Err(err).Str("session", sess.id).Msg("session store ingest failed")
	sess.fail(err)
}

// terminate rejects every outstanding exchange with err and stops the
// dispatcher once its queue drains. Called exactly once, from the loop.
// Recording the terminal error under pendingMu closes the race with a
// request registering after the sweep: it either lands in the swept map or
// observes termErr and fails fast.
func (c *Client) terminate(err error) {
	c.pendingMu.Lock()
	c.termErr = err
	pending := c.pending
	c.pending = make(map[string]chan reqOutcome)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- reqOutcome{err: err}
	}

	c.sessMu.Lock()
	sessions := make([]*sessionState, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.sessMu.Unlock()
	for _, sess := range sessions {
		sess.fail(err)
	}

	c.jobs.fail(err)
}

// dispatchLoop runs strategy callbacks one at a time, in wire arrival order.
// A single dispatcher preserves per-session ordering while decoupling
// callbacks from the frame reader.
func (c *Client) dispatchLoop() {
	defer close(c.dispDone)
	for {
		v, err := c.jobs.pop(context.Background())
		if err != nil {
			return
		}
		v.(func())()
	}
}

func (c *Client) enqueueCallback(sessionID, hook string, fn func(context.Context) error) {
	c.jobs.push(func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.CallbackErrorsTotal.Inc()
				c.log.Error().Str("session", sessionID).Str("hook", hook).Any("panic", r).Msg("strategy callback panicked")
			}
		}()
		if err := fn(c.ctx); err != nil {
			metrics.CallbackErrorsTotal.Inc()
			c.log.Warn().Err(err).Str("session", sessionID).Str("hook", hook).Msg("strategy callback error suppressed")
			if c.onCbErr != nil {
				c.onCbErr(sessionID, err)
			}
		}
	})
}
