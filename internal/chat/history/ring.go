package history

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

// DefaultCapacity - number of entries retained by chat history by default.
const DefaultCapacity = 10

// Ring - accumulates a limited number of strings in FIFO order.
// When ring is full, every push evicts the oldest entry.
// Ring is safe for concurrent use.
type Ring struct {
	capacity int
	mu       sync.RWMutex
	data     *queue.Queue
}

// NewRing - builds history ring for given capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("history.NewRing: capacity (%d) must be greater than 0", capacity)
	}
	return &Ring{capacity: capacity, data: queue.New()}, nil
}

// Cap - returns max number of entries.
func (r *Ring) Cap() int {
	return r.capacity
}

// Len - returns number of currently stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Length()
}

// Push - adds entry to history, evicting the oldest one if ring is full.
func (r *Ring) Push(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.data.Length() >= r.capacity {
		r.data.Remove()
	}
	r.data.Add(entry)
}

// Tail - makes copy of last n entries, the first item in resulting slice is the oldest.
// Negative n is treated as its absolute value, n greater than length returns all entries.
func (r *Ring) Tail(n int) []string {
	if n < 0 {
		n *= -1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	l := r.data.Length()
	if n > l {
		n = l
	}
	tail := make([]string, n)
	for i := range tail {
		tail[i] = r.data.Get(l - n + i).(string)
	}
	return tail
}
