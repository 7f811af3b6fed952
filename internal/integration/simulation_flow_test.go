package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"simutrador-go/internal/auth"
	"simutrador-go/internal/protocol"
	"simutrador-go/internal/session"
	"simutrador-go/internal/strategy"
)

// scriptedConn plays a simulation server: it answers start_simulation with a
// full session lifecycle and acks every order batch.
type scriptedConn struct {
	inbound chan []byte
	mu      sync.Mutex
	closed  bool
	wake    chan struct{}
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{inbound: make(chan []byte, 64), wake: make(chan struct{})}
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	for {
		select {
		case frame := <-c.inbound:
			return websocket.TextMessage, frame, nil
		default:
		}
		c.mu.Lock()
		closed, wake := c.closed, c.wake
		c.mu.Unlock()
		if closed {
			return 0, nil, fmt.Errorf("connection closed")
		}
		select {
		case frame := <-c.inbound:
			return websocket.TextMessage, frame, nil
		case <-wake:
		}
	}
}

func (c *scriptedConn) WriteMessage(_ int, data []byte) error {
	env, ok := protocol.ParseEnvelope(data)
	if !ok {
		return fmt.Errorf("malformed client frame")
	}
	switch env.Type {
	case protocol.TypeStartSimulation:
		c.reply(protocol.TypeSessionCreated, env.RequestID, `{"session_id":"sess-1"}`)
		c.reply(protocol.TypeHistorySnapshot, "", `{"session_id":"sess-1","timeframe":"1min","count":2,"candles":{"AAPL":[
			{"date":"2024-01-02T09:30:00Z","open":100,"high":100,"low":100,"close":100,"volume":1000},
			{"date":"2024-01-02T09:31:00Z","open":101,"high":101,"low":101,"close":101,"volume":1000}
		]}}`)
		c.reply(protocol.TypeTick, "", `{"session_id":"sess-1","candles":{"AAPL":{"date":"2024-01-02T09:32:00Z","open":110,"high":110,"low":110,"close":110,"volume":2000}}}`)
		c.reply(protocol.TypeExecutionReport, "", `{"session_id":"sess-1","order_id":"srv-fill-1","symbol":"AAPL","side":"buy","quantity":1,"price":110}`)
		c.reply(protocol.TypeSimulationEnd, "", `{"session_id":"sess-1","reason":"completed"}`)
	case protocol.TypeOrderBatch:
		var batch protocol.OrderBatch
		_ = json.Unmarshal(env.Data, &batch)
		ids := make([]string, 0, len(batch.Orders))
		for _, o := range batch.Orders {
			ids = append(ids, o.OrderID)
		}
		accepted, _ := json.Marshal(ids)
		c.reply(protocol.TypeBatchAck, env.RequestID,
			fmt.Sprintf(`{"batch_id":%q,"accepted_orders":%s,"rejected_orders":{},"estimated_fills":{}}`, batch.BatchID, accepted))
	}
	return nil
}

func (c *scriptedConn) reply(msgType, requestID, data string) {
	frame, _ := protocol.EncodeEnvelope(msgType, requestID, json.RawMessage(data))
	c.inbound <- frame
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.wake)
		c.wake = make(chan struct{})
	}
	return nil
}

type memoryRecorder struct {
	mu    sync.Mutex
	fills []protocol.ExecutionReport
}

func (r *memoryRecorder) Record(rep protocol.ExecutionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, rep)
}

func (r *memoryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fills)
}

func TestSimulationFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"jwt-abc","expires_in":3600,"user_id":"u-1"}`))
	}))
	defer tokenSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	authClient := auth.New(tokenSrv.URL, zerolog.Nop())
	if _, err := authClient.Login(ctx, "sk-test"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	var dialedURL string
	conn := newScriptedConn()
	rec := &memoryRecorder{}
	client := session.New(authClient, "ws://sim.test", strategy.NewMomentum(0.01, 3, 0, 1), zerolog.Nop(),
		session.WithRecorder(rec),
		session.WithDialer(func(ctx context.Context, url string) (session.Conn, error) {
			dialedURL = url
			return conn, nil
		}),
	)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer client.Close()

	if dialedURL != "ws://sim.test/ws/simulate?token=jwt-abc" {
		t.Fatalf("unexpected dialed url: %s", dialedURL)
	}

	fills := client.SubscribeFills("sess-1")

	sessionID, err := client.Run(ctx, protocol.StartSimulationParams{
		Symbols:        []string{"AAPL"},
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100000,
		Timeframe:      "1min",
		WarmupBars:     2,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sessionID != "sess-1" {
		t.Fatalf("unexpected session id: %s", sessionID)
	}

	st, err := client.WaitForStoreReady(ctx, sessionID)
	if err != nil {
		t.Fatalf("WaitForStoreReady returned error: %v", err)
	}
	if st.Len("AAPL") != 3 {
		t.Fatalf("expected 3 candles in the store, got %d", st.Len("AAPL"))
	}

	fill, err := fills.Next(ctx)
	if err != nil {
		t.Fatalf("fill never delivered: %v", err)
	}
	if fill.OrderID != "srv-fill-1" || fill.Price != 110 {
		t.Fatalf("unexpected fill: %+v", fill)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one recorded fill, got %d", rec.count())
	}

	// Direct submission over the same connection still round-trips after the
	// session ended.
	ack, err := client.SubmitOrders(ctx, sessionID, []strategy.OrderIntent{
		{Symbol: "AAPL", Side: strategy.SideSell, Quantity: 1},
	}, "wind-down")
	if err != nil {
		t.Fatalf("SubmitOrders returned error: %v", err)
	}
	if ack.BatchID != "wind-down" {
		t.Fatalf("unexpected batch id: %s", ack.BatchID)
	}
	if len(ack.AcceptedOrders) != 1 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}
