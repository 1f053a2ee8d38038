//go:build !linux

package listen

import (
	"net"
	"syscall"
)

func listenControl(network, address string, c syscall.RawConn) error {
	return nil
}

func tuneKeepAlive(conn *net.TCPConn, cfg Config) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(cfg.KeepAlive)
}
