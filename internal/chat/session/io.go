package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/wtask/loginchat/internal/chat/message"
)

// Run - drives the session until the connection is closed or ctx is cancelled.
// On return the connection is closed and the session is removed from registry.
func (s *Session) Run(ctx context.Context) {
	s.logger.Info("connected")
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	wg := sync.WaitGroup{}
	wg.Add(1)
	var writeErr error
	go func() {
		defer wg.Done()
		writeErr = s.maintainOutbox()
	}()

	readErr := s.maintainInbox()
	if !s.isDraining() {
		s.Close()
	}
	wg.Wait()
	s.Close()
	s.decoder.Reset()

	login := s.Login()
	if s.registry.Unregister(s) {
		s.logger.Info("logged out", "login", login)
	}
	s.logger.Info("disconnected", "reason", partReason(readErr), "write_err", writeErr)
}

func (s *Session) maintainInbox() error {
	buf := make([]byte, s.config.ReadBufferSize)
	for {
		if s.config.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.decoder.Scan(buf[:n], func(line string, ferr error) bool {
				if ferr != nil {
					s.reply(replyLineTooLong)
				} else {
					s.handle(line)
				}
				return s.State() != StateClosed
			})
		}
		if err != nil {
			return err
		}
		if s.State() == StateClosed {
			return nil
		}
	}
}

func (s *Session) maintainOutbox() error {
	w := bufio.NewWriter(s.conn)
	for {
		var o outgoing
		select {
		case o = <-s.outbox:
		case <-s.done:
			return nil
		}
		// bufio.Writer may flush by itself, so deadline is set before any write
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		_, err := w.Write(message.Encode(o.line))
		if err == nil && (len(s.outbox) == 0 || o.hangup) {
			err = w.Flush()
		}
		if err != nil {
			s.Close()
			return err
		}
		if o.hangup {
			s.Close()
			return nil
		}
	}
}

// partReason - describes why the client has gone.
func partReason(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return "closed by server"
	case errors.Is(err, io.EOF):
		return "left"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timed out"
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return "closed"
	default:
		return err.Error()
	}
}
