// Package listen opens TCP listeners for chat clients.
// On Linux TCP keep-alive is tuned, so dead peers are detected
// long before the idle timeout of chat session.
package listen

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Config - parameters of listening socket.
type Config struct {
	// KeepAlive - idle period before the first keep-alive packet and interval between packets.
	// Zero value means DefaultKeepAlive, negative disables keep-alive.
	KeepAlive time.Duration
	// KeepAliveCount - number of unanswered keep-alive packets before connection is dropped.
	KeepAliveCount int
}

const (
	// DefaultKeepAlive - default keep-alive period.
	DefaultKeepAlive = 30 * time.Second
	// DefaultKeepAliveCount - default number of keep-alive packets.
	DefaultKeepAliveCount = 4
)

// TCP - listens TCP address with given socket parameters.
func TCP(ctx context.Context, address string, cfg Config) (net.Listener, error) {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.KeepAliveCount <= 0 {
		cfg.KeepAliveCount = DefaultKeepAliveCount
	}
	lc := net.ListenConfig{
		Control:   listenControl,
		KeepAlive: cfg.KeepAlive,
	}
	l, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen.TCP: %w", err)
	}
	return &listener{l, cfg}, nil
}

type listener struct {
	net.Listener
	config Config
}

// Accept - waits for the next connection and applies keep-alive parameters to it.
// Connection which could not be tuned is closed and skipped, the listener keeps accepting.
func (l *listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		tcp, ok := conn.(*net.TCPConn)
		if !ok || l.config.KeepAlive <= 0 {
			return conn, nil
		}
		if err := tuneKeepAlive(tcp, l.config); err != nil {
			// peer may have reset the connection already
			conn.Close()
			continue
		}
		return conn, nil
	}
}
