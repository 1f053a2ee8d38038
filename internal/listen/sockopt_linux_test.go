//go:build linux

package listen

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func sockoptTest(test *testing.T, conn net.Conn, level, name int) int {
	test.Helper()
	raw, err := conn.(*net.TCPConn).SyscallConn()
	if err != nil {
		test.Fatal("SyscallConn: unexpected error", err)
	}
	var value int
	var opErr error
	raw.Control(func(fd uintptr) {
		value, opErr = unix.GetsockoptInt(int(fd), level, name)
	})
	if opErr != nil {
		test.Fatal("GetsockoptInt: unexpected error", opErr)
	}
	return value
}

func TestTCP_KeepAlive(test *testing.T) {
	l, err := TCP(context.Background(), "127.0.0.1:0", Config{KeepAlive: 7 * time.Second, KeepAliveCount: 3})
	if err != nil {
		test.Fatal("listen.TCP: unexpected error", err)
	}
	defer l.Close()

	client, server := acceptTest(test, l)
	defer client.Close()
	defer server.Close()

	cases := []struct {
		name          string
		level, option int
		expected      int
	}{
		{"SO_KEEPALIVE", unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1},
		{"TCP_KEEPIDLE", unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 7},
		{"TCP_KEEPINTVL", unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 7},
		{"TCP_KEEPCNT", unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3},
	}
	for _, c := range cases {
		if actual := sockoptTest(test, server, c.level, c.option); actual != c.expected {
			test.Errorf("%s: expected %d, actual %d", c.name, c.expected, actual)
		}
	}
}
