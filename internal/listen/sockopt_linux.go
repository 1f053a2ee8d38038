//go:build linux

package listen

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func listenControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}

func tuneKeepAlive(conn *net.TCPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	seconds := int(cfg.KeepAlive.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		for _, opt := range []struct{ level, name, value int }{
			{unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1},
			{unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, seconds},
			{unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, seconds},
			{unix.IPPROTO_TCP, unix.TCP_KEEPCNT, cfg.KeepAliveCount},
		} {
			if opErr = unix.SetsockoptInt(int(fd), opt.level, opt.name, opt.value); opErr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
