package broker

import (
	"errors"
	"io"
	"log/slog"

	"github.com/wtask/loginchat/internal/chat/history"
)

type registryOption func(r *Registry) error

func setup(r *Registry, options ...registryOption) error {
	if r == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(r); err != nil {
			return err
		}
	}
	return nil
}

// WithHistory - attach custom chat history.
func WithHistory(h History) registryOption {
	return func(r *Registry) error {
		if h == nil {
			return errors.New("broker.WithHistory: history is nil")
		}
		if r.history != nil {
			return errors.New("broker.WithHistory: history already set up")
		}
		r.history = h
		return nil
	}
}

// WithHistorySize - overwrites default number of messages retained in chat history.
func WithHistorySize(size int) registryOption {
	return func(r *Registry) error {
		if r.history != nil {
			return errors.New("broker.WithHistorySize: history already set up")
		}
		h, err := history.NewRing(size)
		if err != nil {
			return err
		}
		r.history = h
		return nil
	}
}

// WithLogger - attach logger to report delivery failures.
func WithLogger(l *slog.Logger) registryOption {
	return func(r *Registry) error {
		r.logger = l
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
