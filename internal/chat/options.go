package chat

import (
	"errors"
	"io"
	"log/slog"

	"github.com/wtask/loginchat/internal/chat/session"
)

// ErrServerClosed - returns by Server.Serve after Server.Shutdown.
var ErrServerClosed = errors.New("chat.Server: closed")

type serverOption func(s *Server) error

func setup(s *Server, options ...serverOption) error {
	if s == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attach logger for connection events.
func WithLogger(l *slog.Logger) serverOption {
	return func(s *Server) error {
		s.logger = l
		return nil
	}
}

// WithSessionConfig - overwrites default session parameters, zero fields keep defaults.
func WithSessionConfig(cfg session.Config) serverOption {
	return func(s *Server) error {
		s.config.Merge(&cfg)
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
