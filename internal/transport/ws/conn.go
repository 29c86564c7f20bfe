package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsConn is owned by the server; the dispatcher only calls Send.
type wsConn struct {
	id   string
	user string
	conn *websocket.Conn
	send chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, id, user string, buffer int) *wsConn {
	return &wsConn{
		id:     id,
		user:   user,
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues frame for the write loop without blocking.
func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

// closeWith sends a close frame before closing the socket.
func (c *wsConn) closeWith(code int, text string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	_ = c.Close()
}
