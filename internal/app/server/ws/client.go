package ws

import (
	"context"
	"sync"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

// RuntimeClient couples a client ID to its transport and a bounded outbound
// queue drained by a single writer goroutine. All writes to the socket go
// through that goroutine, so enqueue order is delivery order.
type RuntimeClient struct {
	ctx      context.Context
	cancel   context.CancelFunc
	ws       *WebSocket
	clientID string
	out      chan []byte
	once     sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, clientID string, queueSize int) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:      ctx,
		cancel:   cancel,
		ws:       ws,
		clientID: clientID,
		out:      make(chan []byte, queueSize),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string { return c.clientID }

// Send enqueues one outbound frame. It never blocks: a full queue means the
// peer is too slow to keep up and the caller gets ErrSendBufferFull, which
// the broadcaster treats as a transport failure and tears the client down.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				// Dead peer: closing the socket makes the read loop exit,
				// which drives the gateway teardown path.
				c.Close()
				return
			}
		}
	}
}
