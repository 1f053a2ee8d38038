package wsnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Listener - accepts WebSocket clients upgraded on HTTP path, implements net.Listener.
type Listener struct {
	addr     net.Addr
	server   *http.Server
	upgrader websocket.Upgrader
	conns    chan *Conn
	done     chan struct{}
	once     sync.Once
}

// Listen - starts HTTP server on address, WebSocket clients are upgraded on path.
func Listen(address, path string) (*Listener, error) {
	tcp, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("wsnet.Listen: %w", err)
	}
	return Serve(tcp, path), nil
}

// Serve - starts HTTP server on the listener, WebSocket clients are upgraded on path.
func Serve(tcp net.Listener, path string) *Listener {
	if path == "" {
		path = "/"
	}
	l := &Listener{
		addr: tcp.Addr(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// chat is served for any origin, there are no credentials to protect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(chan *Conn),
		done:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.upgrade)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		l.server.Serve(tcp)
		l.Close()
	}()
	return l
}

func (l *Listener) upgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has replied with HTTP error already
		return
	}
	conn := NewConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		conn.Close()
	}
}

// Accept - waits for next upgraded WebSocket client.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close - stops HTTP server, already accepted connections are kept.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err = l.server.Shutdown(ctx); errors.Is(err, context.DeadlineExceeded) {
			err = l.server.Close()
		}
	})
	return err
}

// Addr - returns listener network address.
func (l *Listener) Addr() net.Addr {
	return l.addr
}
