// Package session drives a single chat connection: login handshake,
// chat messages routing and connection teardown.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/wtask/loginchat/internal/chat/broker"
	"github.com/wtask/loginchat/internal/chat/message"
)

// Registry - shared chat state used by sessions.
type Registry interface {
	Register(p broker.Peer, login string) error
	Unregister(p broker.Peer) bool
	Broadcast(sender, text string) int
}

type outgoing struct {
	line   string
	hangup bool // close connection right after the line is written
}

// Session - server side of one client connection.
// Session exclusively owns the connection and closes it on teardown.
type Session struct {
	id       string
	conn     net.Conn
	registry Registry
	config   Config
	logger   *slog.Logger

	decoder message.Decoder
	outbox  chan outgoing

	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	state    State
	login    string
	draining bool // outbox keeps the last line to write before close
}

// New - builds session for accepted connection.
// Zero fields of cfg are replaced with defaults.
func New(conn net.Conn, registry Registry, cfg Config, logger *slog.Logger) (*Session, error) {
	if conn == nil {
		return nil, errors.New("session.New: connection is nil")
	}
	if registry == nil {
		return nil, errors.New("session.New: registry is nil")
	}
	config := DefaultConfig()
	config.Merge(&cfg)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("session.New: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		conn:     conn,
		registry: registry,
		config:   config,
		logger:   logger.With("session", id, "remote", formatAddress(conn.RemoteAddr())),
		decoder:  message.Decoder{MaxLineSize: config.MaxLineSize},
		outbox:   make(chan outgoing, config.OutboxSize),
		done:     make(chan struct{}),
		state:    StateConnected,
	}, nil
}

// ID - returns unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// State - returns current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login - returns claimed login or empty string.
func (s *Session) Login() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login
}

// Done - is closed when session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Welcome - implements broker.Peer, queues greeting and history block.
// Header of the block announces capacity of chat history.
func (s *Session) Welcome(login string, capacity int, history []string) error {
	lines := make([]string, 0, len(history)+2)
	lines = append(lines, fmt.Sprintf(replyGreeting, login), fmt.Sprintf(replyHistory, capacity))
	lines = append(lines, history...)
	for _, line := range lines {
		if err := s.enqueue(outgoing{line: line}); err != nil {
			return err
		}
	}
	return nil
}

// Deliver - implements broker.Peer, queues chat line without blocking.
// Session is closed if its outbox is full.
func (s *Session) Deliver(line string) error {
	err := s.enqueue(outgoing{line: line})
	if errors.Is(err, ErrSlowConsumer) {
		s.logger.Warn("slow consumer, closing")
		s.Close()
	}
	return err
}

// Close - closes session and its connection. Safe to call several times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) enqueue(o outgoing) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.outbox <- o:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// reply - sends protocol notice to the client.
func (s *Session) reply(line string) {
	if err := s.enqueue(outgoing{line: line}); errors.Is(err, ErrSlowConsumer) {
		s.Close()
	}
}

// hangup - moves session into closed state and closes connection once the line is sent.
func (s *Session) hangup(line string) {
	s.mu.Lock()
	s.state = StateClosed
	s.draining = true
	s.mu.Unlock()
	if err := s.enqueue(outgoing{line: line, hangup: true}); err != nil {
		s.Close()
	}
}

func (s *Session) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// formatAddress - formats network address for logging purposes.
func formatAddress(a net.Addr) string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}
