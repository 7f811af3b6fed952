// Package session owns the persistent simulation connection: the exclusive
// receive loop, request/response correlation, per-session milestone waiters,
// fan-out event queues, and strategy callback dispatch.
//
// One connection carries any number of logical exchanges concurrently:
// one-shot request/response pairs keyed by request id, and session-scoped
// event streams keyed by session id. The receive loop is the sole reader of
// the transport and never blocks on a future inbound message; strategy
// callbacks run on a separate dispatcher goroutine so they can safely issue
// new requests, including blocking ones, without stalling the reader.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"simutrador-go/internal/execution"
	"simutrador-go/internal/protocol"
	"simutrador-go/internal/risk"
	"simutrador-go/internal/store"
	"simutrador-go/internal/strategy"
)

var (
	// ErrNotConnected reports an operation before Connect (or after a failed
	// connect). Raised synchronously at the call site.
	ErrNotConnected = errors.New("session: not connected, call Connect first")
	// ErrClosed rejects awaits outstanding when Close tears the client down.
	ErrClosed = errors.New("session: client closed")
	// ErrConnectionLost wraps the transport failure that killed the receive
	// loop; every outstanding await is rejected with it.
	ErrConnectionLost = errors.New("session: connection lost")
)

// TokenProvider supplies the bearer credential for the WebSocket URL.
// auth.Client implements it.
type TokenProvider interface {
	CachedToken() string
	WebSocketURL(base string) (string, error)
}

// Recorder observes every execution report the client receives.
type Recorder interface {
	Record(protocol.ExecutionReport)
}

// SessionAware strategies get a handle back to the client before the receive
// loop starts, so callbacks can submit orders.
type SessionAware interface {
	SetSession(*Client)
}

// reqOutcome resolves one pending request: exactly one field is set.
type reqOutcome struct {
	created *protocol.SessionCreated
	ack     *protocol.BatchAck
	err     error
}

// Client is the public facade over one simulation connection.
type Client struct {
	auth     TokenProvider
	baseURL  string
	strat    strategy.Strategy
	adapter  *execution.Adapter
	log      zerolog.Logger
	dial     Dialer
	rec      Recorder
	onCbErr  func(sessionID string, err error)
	limits   risk.Limits
	execMode string

	mu      sync.Mutex // lifecycle: conn, ctx
	conn    Conn
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan reqOutcome
	termErr   error // set once the receive loop has died; new requests fail fast

	sessMu   sync.Mutex
	sessions map[string]*sessionState

	jobs     *eventQueue // callback dispatcher feed
	loopDone chan struct{}
	dispDone chan struct{}
}

// Option configures Client construction.
type Option func(*Client)

// WithDialer overrides the transport dialer (tests inject an in-memory fake).
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithRecorder journals every execution report the connection receives.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithRiskLimits caps per-trade notional before orders leave the SDK.
func WithRiskLimits(l risk.Limits) Option {
	return func(c *Client) { c.limits = l }
}

// WithExecutionMode sets the execution_mode sent on order batches.
func WithExecutionMode(mode string) Option {
	return func(c *Client) { c.execMode = mode }
}

// WithCallbackErrorHook observes suppressed strategy callback errors without
// changing delivery semantics.
func WithCallbackErrorHook(hook func(sessionID string, err error)) Option {
	return func(c *Client) { c.onCbErr = hook }
}

// New builds a client for the given server base URL. strat may be nil for
// callers that only use the wait/subscribe surface.
func New(auth TokenProvider, baseURL string, strat strategy.Strategy, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		auth:     auth,
		baseURL:  baseURL,
		strat:    strat,
		log:      log,
		dial:     gorillaDial,
		pending:  make(map[string]chan reqOutcome),
		sessions: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.adapter = execution.NewAdapter(log, c.limits, c.execMode)
	return c
}

// Connect authenticates the URL, opens the transport, and starts the receive
// loop and callback dispatcher. Calling Connect on a connected client is a
// no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}

	url, err := c.auth.WebSocketURL(composeEndpoint(c.baseURL))
	if err != nil {
		return err
	}
	conn, err := c.dial(ctx, url)
	if err != nil {
		return fmt.Errorf("dial simulation server: %w", err)
	}

	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.jobs = newEventQueue()
	c.loopDone = make(chan struct{})
	c.dispDone = make(chan struct{})

	if aware, ok := c.strat.(SessionAware); ok {
		aware.SetSession(c)
	}

	go c.dispatchLoop()
	go c.recvLoop()
	c.log.Info().Str("url", c.baseURL).Msg("connected to simulation server")
	return nil
}

// Close cancels the receive loop, rejects every outstanding request and
// waiter, and closes the transport. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	loopDone := c.loopDone
	dispDone := c.dispDone
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	err := conn.Close()
	<-loopDone
	<-dispDone
	c.log.Info().Msg("simulation connection closed")
	return err
}

// StartSimulation sends a start_simulation request and awaits the matching
// session_created response, returning the server-assigned session id.
func (c *Client) StartSimulation(ctx context.Context, params protocol.StartSimulationParams) (string, error) {
	rid := uuid.NewString()
	out, err := c.request(ctx, protocol.TypeStartSimulation, rid, params)
	if err != nil {
		return "", err
	}
	if out.created == nil {
		return "", protocol.Errorf("start_simulation: response was not a session_created")
	}
	c.getSession(out.created.SessionID)
	return out.created.SessionID, nil
}

// SubmitOrders translates the intents into an order_batch (client-generated
// order ids, risk gating) and awaits the batch_ack. A batchID of "" generates
// one. Safe to call from a strategy callback: the dispatcher is independent
// of the frame reader, so the ack can still be delivered.
func (c *Client) SubmitOrders(ctx context.Context, sessionID string, intents []strategy.OrderIntent, batchID string) (protocol.BatchAck, error) {
	batch := c.adapter.Batch(sessionID, batchID, intents)
	if len(batch.Orders) == 0 {
		return protocol.BatchAck{}, fmt.Errorf("session: no submittable orders in batch %s", batch.BatchID)
	}
	return c.SubmitBatch(ctx, batch)
}

// SubmitOrdersNowait schedules the submission as an independent task and
// returns immediately; the eventual ack (or error) arrives on the channel.
func (c *Client) SubmitOrdersNowait(sessionID string, intents []strategy.OrderIntent, batchID string) <-chan execution.AckResult {
	results := make(chan execution.AckResult, 1)
	go func() {
		ack, err := c.SubmitOrders(context.Background(), sessionID, intents, batchID)
		results <- execution.AckResult{Ack: ack, Err: err}
	}()
	return results
}

// PlaceBracketOrder submits a single order, optionally with protective
// stop-loss and take-profit levels, through the batch path.
func (c *Client) PlaceBracketOrder(ctx context.Context, sessionID string, intent strategy.OrderIntent, batchID string) (protocol.BatchAck, error) {
	return c.SubmitOrders(ctx, sessionID, []strategy.OrderIntent{intent}, batchID)
}

// PlaceBracketOrderNowait is the non-blocking form of PlaceBracketOrder.
func (c *Client) PlaceBracketOrderNowait(sessionID string, intent strategy.OrderIntent, batchID string) <-chan execution.AckResult {
	return c.SubmitOrdersNowait(sessionID, []strategy.OrderIntent{intent}, batchID)
}

// SubmitBatch sends a prebuilt order batch and awaits its ack. Implements
// execution.Submitter.
func (c *Client) SubmitBatch(ctx context.Context, batch protocol.OrderBatch) (protocol.BatchAck, error) {
	rid := uuid.NewString()
	out, err := c.request(ctx, protocol.TypeOrderBatch, rid, batch)
	if err != nil {
		return protocol.BatchAck{}, err
	}
	if out.ack == nil {
		return protocol.BatchAck{}, protocol.Errorf("order_batch: response was not a batch_ack")
	}
	return *out.ack, nil
}

// SubmitBatchNowait implements the non-blocking half of execution.Submitter.
func (c *Client) SubmitBatchNowait(batch protocol.OrderBatch) <-chan execution.AckResult {
	results := make(chan execution.AckResult, 1)
	go func() {
		ack, err := c.SubmitBatch(context.Background(), batch)
		results <- execution.AckResult{Ack: ack, Err: err}
	}()
	return results
}

// WaitForHistorySnapshot blocks until the warmup snapshot for the session has
// arrived. A context timeout rejects only this wait; a later call can still
// observe the snapshot once it lands.
func (c *Client) WaitForHistorySnapshot(ctx context.Context, sessionID string) (protocol.HistorySnapshot, error) {
	sess := c.getSession(sessionID)
	v, err := sess.history.wait(ctx)
	if err != nil {
		return protocol.HistorySnapshot{}, err
	}
	return v.(protocol.HistorySnapshot), nil
}

// WaitForStoreReady blocks until the session's store has been seeded from the
// warmup snapshot, then returns it.
func (c *Client) WaitForStoreReady(ctx context.Context, sessionID string) (*store.Store, error) {
	sess := c.getSession(sessionID)
	if _, err := sess.history.wait(ctx); err != nil {
		return nil, err
	}
	return sess.store, nil
}

// WaitForSimulationEnd blocks until the session's terminal event.
func (c *Client) WaitForSimulationEnd(ctx context.Context, sessionID string) (protocol.SimulationEnd, error) {
	sess := c.getSession(sessionID)
	v, err := sess.end.wait(ctx)
	if err != nil {
		return protocol.SimulationEnd{}, err
	}
	return v.(protocol.SimulationEnd), nil
}

// SubscribeTicks returns the session's tick queue. Repeated calls return the
// same queue; the queue exists from first access by producer or consumer.
func (c *Client) SubscribeTicks(sessionID string) *TickQueue {
	return &TickQueue{q: c.getSession(sessionID).tickQueue()}
}

// SubscribeFills returns the session's execution-report queue.
func (c *Client) SubscribeFills(sessionID string) *FillQueue {
	return &FillQueue{q: c.getSession(sessionID).fillQueue()}
}

// SubscribeAccount returns the session's account-snapshot queue.
func (c *Client) SubscribeAccount(sessionID string) *AccountQueue {
	return &AccountQueue{q: c.getSession(sessionID).accountQueue()}
}

// Run starts a simulation and blocks until it ends, returning the session id.
func (c *Client) Run(ctx context.Context, params protocol.StartSimulationParams) (string, error) {
	sessionID, err := c.StartSimulation(ctx, params)
	if err != nil {
		return "", err
	}
	if _, err := c.WaitForSimulationEnd(ctx, sessionID); err != nil {
		return sessionID, err
	}
	return sessionID, nil
}

// request registers a pending entry, sends the envelope, and awaits the
// correlated response.
func (c *Client) request(ctx context.Context, msgType, rid string, data any) (reqOutcome, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return reqOutcome{}, ErrNotConnected
	}

	frame, err := protocol.EncodeEnvelope(msgType, rid, data)
	if err != nil {
		return reqOutcome{}, err
	}

	ch := make(chan reqOutcome, 1)
	c.pendingMu.Lock()
	if c.termErr != nil {
		err := c.termErr
		c.pendingMu.Unlock()
		return reqOutcome{}, err
	}
	c.pending[rid] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.takePending(rid)
		return reqOutcome{}, fmt.Errorf("send %s: %w", msgType, err)
	}

	select {
	case <-ctx.Done():
		c.takePending(rid)
		return reqOutcome{}, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			return reqOutcome{}, out.err
		}
		return out, nil
	}
}

// takePending removes and returns the pending channel for a request id.
// Exactly one caller wins; the entry is removed exactly once.
func (c *Client) takePending(rid string) chan reqOutcome {
	if rid == "" {
		return nil
	}
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch := c.pending[rid]
	delete(c.pending, rid)
	return ch
}

// getSession returns the state bundle for a session id, creating it on first
// use. Waiters may arm before or after the corresponding event arrives.
func (c *Client) getSession(sessionID string) *sessionState {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	sess := c.sessions[sessionID]
	if sess == nil {
		sess = newSessionState(sessionID)
		c.sessions[sessionID] = sess
	}
	return sess
}

// peekSession returns existing state without creating it.
func (c *Client) peekSession(sessionID string) *sessionState {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.sessions[sessionID]
}
