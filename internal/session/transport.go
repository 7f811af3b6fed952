package session

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the message-oriented, full-duplex transport the multiplexer reads
// and writes. *websocket.Conn satisfies it; tests inject an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport to the authenticated URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

const maxFrameSize = 1 << 20

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// simulatePath is appended to the base URL when not already present.
const simulatePath = "/ws/simulate"

func composeEndpoint(base string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasSuffix(base, simulatePath) {
		base += simulatePath
	}
	return base
}
