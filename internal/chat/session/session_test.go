package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/wtask/loginchat/internal/chat/broker"
)

// clientTest - remote side of session connection.
type clientTest struct {
	test   *testing.T
	id     string
	conn   net.Conn
	reader *bufio.Reader
}

func (c *clientTest) send(data string) {
	c.test.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := c.conn.Write([]byte(data)); err != nil {
		c.test.Fatal(c.id, "write error", err)
	}
}

func (c *clientTest) expect(lines ...string) {
	c.test.Helper()
	for _, expected := range lines {
		c.conn.SetReadDeadline(time.Now().Add(time.Second))
		actual, err := c.reader.ReadString('\n')
		if err != nil {
			c.test.Fatalf("%s expected %q, got read error %v", c.id, expected, err)
		}
		if actual = strings.TrimSuffix(actual, "\n"); actual != expected {
			c.test.Fatalf("%s expected %q, received %q", c.id, expected, actual)
		}
	}
}

func (c *clientTest) expectSilence(d time.Duration) {
	c.test.Helper()
	c.conn.SetReadDeadline(time.Now().Add(d))
	line, err := c.reader.ReadString('\n')
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		c.test.Fatalf("%s expected nothing, received %q (%v)", c.id, line, err)
	}
}

func (c *clientTest) expectClosed() {
	c.test.Helper()
	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	if line, err := c.reader.ReadString('\n'); err != io.EOF {
		c.test.Fatalf("%s expected closed connection, received %q (%v)", c.id, line, err)
	}
}

type sessionTest struct {
	*Session
	client   *clientTest
	finished chan struct{}
}

func (s *sessionTest) wait(test *testing.T) {
	test.Helper()
	select {
	case <-s.finished:
	case <-time.After(2 * time.Second):
		test.Fatal("session did not finish")
	}
}

func startSessionTest(test *testing.T, ctx context.Context, id string, r Registry, cfg Config) *sessionTest {
	test.Helper()
	clientConn, serverConn := net.Pipe()
	s, err := New(serverConn, r, cfg, nil)
	if err != nil {
		test.Fatal("session.New, unexpected error:", err)
	}
	st := &sessionTest{
		Session:  s,
		client:   &clientTest{test, id, clientConn, bufio.NewReader(clientConn)},
		finished: make(chan struct{}),
	}
	go func() {
		defer close(st.finished)
		s.Run(ctx)
	}()
	test.Cleanup(func() {
		clientConn.Close()
		st.wait(test)
	})
	return st
}

func newRegistryTest(test *testing.T) *broker.Registry {
	r, err := broker.New()
	if err != nil {
		test.Fatal("broker.New, unexpected error:", err)
	}
	return r
}

func waitFor(test *testing.T, what string, cond func() bool) {
	test.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			test.Fatal("timed out waiting for", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_LoginScenario(test *testing.T) {
	ctx := context.Background()
	r := newRegistryTest(test)

	alice := startSessionTest(test, ctx, "alice", r, Config{})
	alice.client.send("login:alice\r\n")
	alice.client.expect("Hello, alice!", "Last 10 messages:")
	if alice.State() != StateActive || alice.Login() != "alice" {
		test.Error("Unexpected alice state", alice.State(), alice.Login())
	}

	impostor := startSessionTest(test, ctx, "impostor", r, Config{})
	impostor.client.send("login:alice\r\n")
	impostor.client.expect("Login alice is taken, try another one")
	impostor.client.expectClosed()
	impostor.wait(test)
	if impostor.State() != StateClosed {
		test.Error("Rejected session must be closed, got", impostor.State())
	}

	bob := startSessionTest(test, ctx, "bob", r, Config{})
	bob.client.send("login:bob\r\n")
	bob.client.expect("Hello, bob!", "Last 10 messages:")

	alice.client.send("hello\r\n")
	bob.client.expect("<alice> hello")
	alice.client.expectSilence(50 * time.Millisecond)

	if logins := r.Logins(); !reflect.DeepEqual(logins, []string{"alice", "bob"}) {
		test.Error("Unexpected logins", logins)
	}

	alice.client.conn.Close()
	alice.wait(test)
	if logins := r.Logins(); !reflect.DeepEqual(logins, []string{"bob"}) {
		test.Error("Unexpected logins after alice left", logins)
	}
}

func TestSession_HistoryForNewcomer(test *testing.T) {
	ctx := context.Background()
	r := newRegistryTest(test)

	alice := startSessionTest(test, ctx, "alice", r, Config{})
	alice.client.send("login:alice\n")
	alice.client.expect("Hello, alice!", "Last 10 messages:")
	chunk := strings.Builder{}
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&chunk, "message %d\n", i)
	}
	alice.client.send(chunk.String())
	waitFor(test, "history", func() bool {
		h := r.History()
		return len(h) > 0 && h[len(h)-1] == "<alice> message 15"
	})

	bob := startSessionTest(test, ctx, "bob", r, Config{})
	bob.client.send("login:bob\n")
	expected := []string{"Hello, bob!", "Last 10 messages:"}
	for i := 6; i <= 15; i++ {
		expected = append(expected, fmt.Sprintf("<alice> message %d", i))
	}
	bob.client.expect(expected...)
	bob.client.expectSilence(20 * time.Millisecond)
}

func TestSession_HistoryHeaderCapacity(test *testing.T) {
	r, err := broker.New(broker.WithHistorySize(20))
	if err != nil {
		test.Fatal("broker.New, unexpected error:", err)
	}
	r.AppendHistory("<system> started")
	s := startSessionTest(test, context.Background(), "client", r, Config{OutboxSize: MinOutboxSize(20)})
	s.client.send("login:client\n")
	s.client.expect("Hello, client!", "Last 20 messages:", "<system> started")
}

func TestSession_RepliesFollowInputOrder(test *testing.T) {
	r := newRegistryTest(test)
	s := startSessionTest(test, context.Background(), "client", r, Config{MaxLineSize: 16})

	s.client.send("hi\n" + strings.Repeat("x", 20) + "\nlogin:\nlogin:client\nhello\n")
	s.client.expect(
		"Please log in first: login:<name>",
		"Line too long, dropped",
		"Usage: login:<name>",
		"Hello, client!",
		"Last 10 messages:",
	)
	waitFor(test, "message in history", func() bool {
		h := r.History()
		return len(h) == 1 && h[0] == "<client> hello"
	})
}

func TestSession_ProtocolErrors(test *testing.T) {
	r := newRegistryTest(test)
	s := startSessionTest(test, context.Background(), "client", r, Config{MaxLineSize: 16})

	s.client.send("hi there\n")
	s.client.expect("Please log in first: login:<name>")
	s.client.send("login:\n")
	s.client.expect("Usage: login:<name>")
	s.client.send("login:a b\n")
	s.client.expect("Usage: login:<name>")
	s.client.send(strings.Repeat("x", 20) + "\n")
	s.client.expect("Line too long, dropped")
	if s.State() != StateConnected {
		test.Error("Session must stay connected after protocol errors, got", s.State())
	}
	if r.Len() != 0 {
		test.Error("Nothing must be registered, got", r.Logins())
	}

	s.client.send("login: carol \n")
	s.client.expect("Hello, carol!", "Last 10 messages:")
	s.client.send("   \n")
	s.client.expectSilence(20 * time.Millisecond)
	if h := r.History(); len(h) != 0 {
		test.Error("Blank lines must not be stored", h)
	}
}

func TestSession_IdleTimeout(test *testing.T) {
	r := newRegistryTest(test)
	s := startSessionTest(test, context.Background(), "idle", r, Config{ReadTimeout: 30 * time.Millisecond})
	s.client.send("login:idle\n")
	s.client.expect("Hello, idle!", "Last 10 messages:")
	s.wait(test)
	if r.Len() != 0 {
		test.Error("Timed out session must be unregistered, got", r.Logins())
	}
}

func TestSession_ContextCancel(test *testing.T) {
	r := newRegistryTest(test)
	ctx, cancel := context.WithCancel(context.Background())
	s := startSessionTest(test, ctx, "client", r, Config{})
	s.client.send("login:client\n")
	s.client.expect("Hello, client!", "Last 10 messages:")
	cancel()
	s.wait(test)
	s.client.expectClosed()
	if r.Len() != 0 {
		test.Error("Cancelled session must be unregistered, got", r.Logins())
	}
}

func TestSession_SlowConsumer(test *testing.T) {
	r := newRegistryTest(test)
	s := startSessionTest(test, context.Background(), "slow", r, Config{OutboxSize: 3})

	var errs []error
	for i := 0; i < 10; i++ {
		if err := s.Deliver(fmt.Sprint(i)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 || errs[0] != ErrSlowConsumer {
		test.Fatal("Expected slow consumer error, got", errs)
	}
	if errs[len(errs)-1] != ErrClosed {
		test.Error("Expected closed session error after slow consumer, got", errs)
	}
	s.wait(test)
	if s.State() != StateClosed {
		test.Error("Slow consumer must be closed, got", s.State())
	}
}

func TestParseLogin(test *testing.T) {
	cases := []struct {
		line     string
		expected string
		ok       bool
	}{
		{"login:alice", "alice", true},
		{"login:  bob  ", "bob", true},
		{"login:Вася", "Вася", true},
		{"login:", "", false},
		{"login:   ", "", false},
		{"login:two words", "", false},
		{"login:<admin>", "", false},
		{"login:" + strings.Repeat("й", MaxLoginLength), strings.Repeat("й", MaxLoginLength), true},
		{"login:" + strings.Repeat("й", MaxLoginLength+1), "", false},
		{"alice", "", false},
		{"Login:alice", "", false},
	}
	for _, c := range cases {
		login, ok := ParseLogin(c.line)
		if login != c.expected || ok != c.ok {
			test.Errorf("ParseLogin(%q): expected (%q, %v), got (%q, %v)", c.line, c.expected, c.ok, login, ok)
		}
	}
}

func TestNew(test *testing.T) {
	r := newRegistryTest(test)
	conn, _ := net.Pipe()
	defer conn.Close()

	if _, err := New(nil, r, Config{}, nil); err == nil {
		test.Error("session.New: expected error for nil connection")
	}
	if _, err := New(conn, nil, Config{}, nil); err == nil {
		test.Error("session.New: expected error for nil registry")
	}
	if _, err := New(conn, r, Config{OutboxSize: 1}, nil); err == nil {
		test.Error("session.New: expected error for small outbox")
	}
	s, err := New(conn, r, Config{}, nil)
	if err != nil {
		test.Fatal("session.New, unexpected error:", err)
	}
	if s.ID() == "" {
		test.Error("session ID is empty")
	}
	if s.State() != StateConnected {
		test.Error("Unexpected initial state", s.State())
	}
	s.Close()
	s.Close()
	select {
	case <-s.Done():
	default:
		test.Error("Done must be closed after Close")
	}
	if err := s.Deliver("late"); err != ErrClosed {
		test.Error("Expected ErrClosed, got", err)
	}
}

func TestConfig_Merge(test *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{OutboxSize: 100, ReadTimeout: -1})
	if cfg.OutboxSize != 100 || cfg.ReadTimeout != -1 {
		test.Error("Unexpected merged config", cfg)
	}
	if cfg.WriteTimeout != DefaultConfig().WriteTimeout {
		test.Error("Zero values must not be merged", cfg.WriteTimeout)
	}
	cfg.Merge(nil)
	if err := cfg.Validate(); err != nil {
		test.Error("Unexpected validation error", err)
	}
}
