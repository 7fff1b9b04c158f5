package comms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = time.Second

// WebSocketRadio talks to a base station bridge or a simulator over a
// websocket, one binary message per frame.
type WebSocketRadio struct {
	conn  *websocket.Conn
	delay time.Duration

	wmu    sync.Mutex
	closed atomic.Bool
}

// DialWebSocket connects to url, e.g. ws://localhost:10020/radio.
func DialWebSocket(ctx context.Context, url string, delay time.Duration) (*WebSocketRadio, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial radio bridge %s: %w", url, err)
	}
	if delay <= 0 {
		delay = DefaultMessageDelay
	}
	return &WebSocketRadio{conn: conn, delay: delay}, nil
}

func (w *WebSocketRadio) Send(frame []byte) error {
	if w.closed.Load() {
		return ErrRadioClosed
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return w.wrap(err)
	}
	return nil
}

func (w *WebSocketRadio) Read() ([]byte, error) {
	if w.closed.Load() {
		return nil, ErrRadioClosed
	}
	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, w.wrap(err)
		}
		if typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *WebSocketRadio) MessageDelay() time.Duration { return w.delay }

// Close sends a close frame and drops the connection.
func (w *WebSocketRadio) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	w.wmu.Unlock()
	return w.conn.Close()
}

func (w *WebSocketRadio) wrap(err error) error {
	if w.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrRadioClosed
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("radio bridge closed: %w", err)
	}
	return fmt.Errorf("websocket radio: %w", err)
}
