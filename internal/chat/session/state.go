package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wtask/loginchat/internal/chat/broker"
)

// State - session lifecycle state.
type State int32

const (
	// StateConnected - connection is accepted, login is not claimed yet.
	StateConnected State = iota
	// StateActive - login is claimed, every line is chat message.
	StateActive
	// StateClosed - terminal state, no input is processed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown state"
	}
}

const (
	// LoginPrefix - starts login command.
	LoginPrefix = "login:"
	// MaxLoginLength - max number of runes in login.
	MaxLoginLength = 32
)

// Server replies.
const (
	replyGreeting    = "Hello, %s!"
	replyHistory     = "Last %d messages:"
	replyLoginTaken  = "Login %s is taken, try another one"
	replyUsage       = "Usage: " + LoginPrefix + "<name>"
	replyLoginFirst  = "Please log in first: " + LoginPrefix + "<name>"
	replyLineTooLong = "Line too long, dropped"
	replyUnavailable = "Chat is unavailable, try again later"
)

// ParseLogin - extracts requested login from login command.
// Returns false if line is not a login command or requested login is malformed.
func ParseLogin(line string) (string, bool) {
	if !strings.HasPrefix(line, LoginPrefix) {
		return "", false
	}
	login := strings.TrimSpace(strings.TrimPrefix(line, LoginPrefix))
	switch {
	case login == "",
		utf8.RuneCountInString(login) > MaxLoginLength,
		strings.ContainsAny(login, "<>"),
		strings.IndexFunc(login, unicode.IsSpace) >= 0:
		return "", false
	}
	return login, true
}

// handle - feeds decoded line into state machine.
func (s *Session) handle(line string) {
	switch s.State() {
	case StateConnected:
		s.handleLogin(line)
	case StateActive:
		if strings.TrimSpace(line) == "" {
			return
		}
		s.registry.Broadcast(s.Login(), line)
	}
}

func (s *Session) handleLogin(line string) {
	login, ok := ParseLogin(line)
	if !ok {
		if strings.HasPrefix(line, LoginPrefix) {
			s.reply(replyUsage)
		} else {
			s.reply(replyLoginFirst)
		}
		return
	}

	err := s.registry.Register(s, login)
	switch {
	case err == nil:
		s.mu.Lock()
		if s.state == StateConnected {
			s.login = login
			s.state = StateActive
		}
		s.mu.Unlock()
		s.logger.Info("logged in", "login", login)
	case errors.Is(err, broker.ErrLoginTaken):
		s.logger.Info("login rejected", "login", login)
		s.hangup(fmt.Sprintf(replyLoginTaken, login))
	default:
		s.logger.Error("unable to register", "login", login, "err", err)
		s.hangup(replyUnavailable)
	}
}
