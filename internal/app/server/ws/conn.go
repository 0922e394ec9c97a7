package ws

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	maxFrameSize  = 512 * 1024
)

type WebSocket struct {
	*websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWebSocket(parent context.Context, conn *websocket.Conn) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop feeds inbound frames to onMsg one at a time; the next frame is
// not read until onMsg returns, so per-connection processing is strictly
// FIFO. Returns when the peer goes away or a read fails.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer func() {
		w.Close()
	}()

	w.Conn.SetReadLimit(maxFrameSize)

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}

		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
