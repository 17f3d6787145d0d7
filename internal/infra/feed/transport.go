package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dash_go/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
)

// Callbacks are the delivery hooks a transport drives. OnMessage receives
// every text frame; OnClose fires exactly once when the connection ends,
// whatever the cause. The worker owns reconnection policy; the transport
// only reports.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int)
}

// Transport is one channel's message stream connection.
type Transport interface {
	// Open dials and starts delivering messages. It returns once the
	// connection is established (or dialing failed); delivery continues on a
	// background goroutine until the connection drops or Close is called.
	Open(ctx context.Context) error

	// Close tears the connection down and waits for delivery to stop.
	Close() error
}

// DialFunc builds a transport for a channel URL. Workers take a DialFunc so
// tests can substitute an in-memory transport.
type DialFunc func(url string, cb Callbacks) Transport

// wsTransport is the production websocket transport.
type wsTransport struct {
	url string
	cb  Callbacks

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWSTransport creates a websocket Transport for one channel stream.
func NewWSTransport(url string, cb Callbacks) Transport {
	return &wsTransport{url: url, cb: cb}
}

func (t *wsTransport) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if t.cb.OnOpen != nil {
		t.cb.OnOpen()
	}

	t.wg.Add(1)
	go t.readLoop(ctx)
	return nil
}

func (t *wsTransport) readLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			t.finish(websocket.CloseGoingAway)
			return
		default:
		}

		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
			} else if t.cb.OnError != nil {
				t.cb.OnError(domain.NewNetworkError("read", err))
			}
			t.finish(code)
			return
		}

		if t.cb.OnMessage != nil {
			t.cb.OnMessage(msg)
		}
	}
}

// finish closes the connection and fires OnClose exactly once.
func (t *wsTransport) finish(code int) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.mu.Unlock()

		if t.cb.OnClose != nil {
			t.cb.OnClose(code)
		}
	})
}

func (t *wsTransport) Close() error {
	t.finish(websocket.CloseNormalClosure)
	t.wg.Wait()
	return nil
}
