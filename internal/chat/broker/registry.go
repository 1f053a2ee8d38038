package broker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wtask/loginchat/internal/chat/history"
	"github.com/wtask/loginchat/internal/chat/message"
)

// Peer - chat participant which may be kept by Registry.
// Peer is used as map key, so implementation must be comparable (pointer is fine).
type Peer interface {
	// Welcome - is called once under registry lock right after the peer has joined under the login.
	// History holds up to capacity latest entries, oldest first. Any error cancels registration.
	Welcome(login string, capacity int, history []string) error
	// Deliver - enqueues line to send to the peer. Must not block.
	Deliver(line string) error
}

// History - ordered chat history.
type History interface {
	// Push - push new entry into history
	Push(string)
	// Tail - get a number of latest entries from history in chronological order
	Tail(n int) []string
	// Cap - max number of entries kept by history
	Cap() int
}

// Registry - keeps logged in chat peers and chat history, routes messages between peers.
// All methods are safe for concurrent use and linearizable with respect to each other.
type Registry struct {
	mu      sync.Mutex
	logins  map[string]Peer
	peers   map[Peer]string
	history History
	logger  *slog.Logger
}

// New - builds Registry with needed options.
func New(options ...registryOption) (*Registry, error) {
	r := &Registry{
		logins: make(map[string]Peer),
		peers:  make(map[Peer]string),
	}
	if err := setup(r, options...); err != nil {
		return nil, err
	}
	if r.history == nil {
		h, err := history.NewRing(history.DefaultCapacity)
		if err != nil {
			return nil, fmt.Errorf("broker.New: %w", err)
		}
		r.history = h
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	return r, nil
}

// Register - joins the peer under given login and sends it the welcome with history snapshot.
// Uniqueness check, insertion and welcome happen atomically, so no broadcast can be
// lost or duplicated between history snapshot and the first live message.
func (r *Registry) Register(p Peer, login string) error {
	if p == nil || login == "" {
		return ErrInvalidLogin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p]; ok {
		return ErrAlreadyJoined
	}
	if _, ok := r.logins[login]; ok {
		return ErrLoginTaken
	}
	r.logins[login] = p
	r.peers[p] = login
	capacity := r.history.Cap()
	if err := p.Welcome(login, capacity, r.history.Tail(capacity)); err != nil {
		delete(r.logins, login)
		delete(r.peers, p)
		return fmt.Errorf("broker.Registry: welcome %q: %w", login, err)
	}
	return nil
}

// Unregister - removes the peer if it is registered.
// Returns false when there was nothing to remove.
func (r *Registry) Unregister(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	login, ok := r.peers[p]
	if !ok {
		return false
	}
	delete(r.peers, p)
	delete(r.logins, login)
	return true
}

// AppendHistory - pushes entry into chat history.
func (r *Registry) AppendHistory(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.Push(entry)
}

// History - returns stable copy of chat history, oldest entry first.
func (r *Registry) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Tail(r.history.Cap())
}

// Broadcast - formats message of the sender, stores it in history
// and delivers it to every registered peer except the sender.
// Delivery failure is isolated to the failed recipient.
// Returns number of recipients the message was delivered to.
func (r *Registry) Broadcast(sender, text string) int {
	line := message.Format(sender, text)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.Push(line)
	delivered := 0
	for login, p := range r.logins {
		if login == sender {
			continue
		}
		if err := p.Deliver(line); err != nil {
			r.logger.Warn("delivery failed", "from", sender, "to", login, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// HistoryCap - returns max number of entries kept in chat history.
func (r *Registry) HistoryCap() int {
	return r.history.Cap()
}

// Len - returns number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logins)
}

// Logins - returns sorted logins of registered peers.
func (r *Registry) Logins() []string {
	r.mu.Lock()
	logins := make([]string, 0, len(r.logins))
	for login := range r.logins {
		logins = append(logins, login)
	}
	r.mu.Unlock()
	sort.Strings(logins)
	return logins
}

// Login - returns login of registered peer.
func (r *Registry) Login(p Peer) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	login, ok := r.peers[p]
	return login, ok
}
