package session

import "errors"

var (
	// ErrClosed - returns when trying to send into closed session.
	ErrClosed = errors.New("session.Session: closed")

	// ErrSlowConsumer - returns when session outbox is full.
	// Session is closed after this error.
	ErrSlowConsumer = errors.New("session.Session: slow consumer, outbox is full")
)
