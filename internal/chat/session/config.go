package session

import (
	"fmt"
	"time"

	"github.com/wtask/loginchat/internal/chat/message"
)

// Config holds per-connection parameters of a session.
type Config struct {
	// ReadTimeout - idle period before client is disconnected, negative value disables it.
	ReadTimeout time.Duration
	// WriteTimeout - max duration of single write into connection.
	WriteTimeout time.Duration
	// OutboxSize - number of outgoing lines which may wait for sending.
	// Recipient is treated as slow consumer and disconnected when its outbox is full.
	OutboxSize int
	// MaxLineSize - max size of inbound line in bytes.
	MaxLineSize int
	// ReadBufferSize - size of buffer for single read from connection.
	ReadBufferSize int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    10 * time.Minute,
		WriteTimeout:   10 * time.Second,
		OutboxSize:     64, // fits default history, see MinOutboxSize
		MaxLineSize:    message.DefaultMaxLineSize,
		ReadBufferSize: 2048,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.ReadTimeout != 0 {
		c.ReadTimeout = source.ReadTimeout
	}
	if source.WriteTimeout != 0 {
		c.WriteTimeout = source.WriteTimeout
	}
	if source.OutboxSize != 0 {
		c.OutboxSize = source.OutboxSize
	}
	if source.MaxLineSize != 0 {
		c.MaxLineSize = source.MaxLineSize
	}
	if source.ReadBufferSize != 0 {
		c.ReadBufferSize = source.ReadBufferSize
	}
}

// MinOutboxSize - returns outbox size which fits greeting, history header
// and history of given capacity at once.
func MinOutboxSize(historyCapacity int) int {
	return historyCapacity + 2
}

// Validate checks that configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.WriteTimeout <= 0:
		return fmt.Errorf("session.Config: invalid write timeout (%v)", c.WriteTimeout)
	case c.MaxLineSize <= 0:
		return fmt.Errorf("session.Config: invalid max line size (%d)", c.MaxLineSize)
	case c.ReadBufferSize <= 0:
		return fmt.Errorf("session.Config: invalid read buffer size (%d)", c.ReadBufferSize)
	case c.OutboxSize < MinOutboxSize(0):
		return fmt.Errorf("session.Config: outbox size (%d) must be greater or equal %d", c.OutboxSize, MinOutboxSize(0))
	}
	return nil
}
