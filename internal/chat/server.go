// Package chat implements connection acceptor of the chat server.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wtask/loginchat/internal/chat/session"
	"github.com/wtask/loginchat/pkg/background"
)

// Server - accepts connections from any net.Listener implementation
// and runs chat session for every connection.
type Server struct {
	sessions *background.Scope
	registry session.Registry
	config   session.Config
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
}

// historyCapacitor - registry which reports capacity of chat history.
type historyCapacitor interface {
	HistoryCap() int
}

// NewServer - creates new chat server which ready to serve several network listeners.
func NewServer(registry session.Registry, options ...serverOption) (*Server, error) {
	if registry == nil {
		return nil, errors.New("chat.NewServer: registry is nil")
	}
	s := &Server{
		registry:  registry,
		config:    session.DefaultConfig(),
		listeners: make(map[net.Listener]struct{}),
	}
	if err := setup(s, options...); err != nil {
		return nil, err
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("chat.NewServer: %w", err)
	}
	if h, ok := registry.(historyCapacitor); ok && s.config.OutboxSize < session.MinOutboxSize(h.HistoryCap()) {
		return nil, fmt.Errorf(
			"chat.NewServer: session outbox size (%d) does not fit history of %d messages",
			s.config.OutboxSize,
			h.HistoryCap(),
		)
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	s.sessions, _ = background.NewScope(context.Background())
	return s, nil
}

// Serve - accepts connections of the listener until it is closed or server is shut down.
// Accept failures are retried with growing delay, so a single failed connection
// or temporary lack of file descriptors does not stop serving.
// Returns nil on shutdown, otherwise the error which stopped accepting.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return errors.New("chat.Server: listener is nil")
	}
	if !s.track(listener) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.untrack(listener)

	logger := s.logger.With("listener", formatAddress(listener.Addr()))
	logger.Info("serving")
	var delay time.Duration // how long to sleep on accept failure
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.sessions.Context().Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Error("listener closed", "err", err)
				return fmt.Errorf("chat.Server: accept: %w", err)
			}
			delay = backoff(delay)
			logger.Warn("accept failed, retrying", "err", err, "delay", delay)
			select {
			case <-time.After(delay):
			case <-s.sessions.Context().Done():
				return nil
			}
			continue
		}
		delay = 0
		s.keep(conn)
	}
}

// keep - starts session for accepted connection in background.
func (s *Server) keep(conn net.Conn) {
	sess, err := session.New(conn, s.registry, s.config, s.logger)
	if err != nil {
		s.logger.Error("unable to start session", "remote", formatAddress(conn.RemoteAddr()), "err", err)
		conn.Close()
		return
	}
	if !s.sessions.Go(sess.Run) {
		conn.Close()
	}
}

// Shutdown - stops server with the specified timeout and returns stopping duration.
// Listeners are closed, every session is cancelled and awaited up to timeout.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	if s.sessions.Context().Err() != nil {
		return 0
	}
	from := time.Now()
	s.sessions.Cancel()
	s.mu.Lock()
	for l := range s.listeners {
		l.Close()
	}
	s.mu.Unlock()
	if !s.sessions.Wait(timeout) {
		s.logger.Warn("sessions have not finished in time", "timeout", timeout)
	}
	return time.Since(from)
}

func (s *Server) track(l net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions.Context().Err() != nil {
		return false
	}
	s.listeners[l] = struct{}{}
	return true
}

func (s *Server) untrack(l net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

func backoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	if delay *= 2; delay > time.Second {
		return time.Second
	}
	return delay
}

// formatAddress - formats specified network address for logging purposes.
func formatAddress(a net.Addr) string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}
