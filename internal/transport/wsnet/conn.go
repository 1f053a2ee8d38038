// Package wsnet exposes WebSocket clients as line-oriented stream connections,
// so they can be served by the same chat sessions as plain TCP clients.
// Every text frame received from a client is one line, every line written
// to the connection is sent as separate text frame.
package wsnet

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn - implements net.Conn over WebSocket connection.
type Conn struct {
	ws *websocket.Conn

	rmu     sync.Mutex
	pending bytes.Buffer // unread part of received frames

	wmu     sync.Mutex
	partial bytes.Buffer // written bytes of incomplete line
}

// NewConn - wraps established WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read - reads received frames as a byte stream, each frame is terminated with '\n'.
// Normal closure of WebSocket connection is reported as io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for c.pending.Len() == 0 {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		c.pending.Write(data)
		if !bytes.HasSuffix(data, []byte{'\n'}) {
			c.pending.WriteByte('\n')
		}
	}
	return c.pending.Read(p)
}

// Write - sends every complete line of p as text frame without terminator.
// Incomplete tail is kept until next write.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.partial.Write(p)
	for {
		i := bytes.IndexByte(c.partial.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		line := bytes.TrimSuffix(c.partial.Next(i+1), []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if err := c.ws.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
	}
}

// Close - closes underlying network connection without waiting for close handshake.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// LocalAddr - returns local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr - returns remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// SetDeadline - sets both read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// SetReadDeadline - sets read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// SetWriteDeadline - sets write deadline.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
