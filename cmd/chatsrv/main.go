package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wtask/loginchat/internal/chat"
	"github.com/wtask/loginchat/internal/chat/broker"
	"github.com/wtask/loginchat/internal/chat/session"
	"github.com/wtask/loginchat/internal/listen"
	"github.com/wtask/loginchat/internal/transport/wsnet"
)

func newLogger(c Configuration) *slog.Logger {
	options := &slog.HandlerOptions{Level: c.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, options)
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}
	return slog.New(handler).With("app", BinaryName, "version", Version)
}

func main() {
	logger := newLogger(Config)
	logger.Info("started", "config", fmt.Sprintf("%+v", Config))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node := net.JoinHostPort(Config.IPAddress, fmt.Sprintf("%d", Config.Port))
	listener, err := listen.TCP(ctx, node, listen.Config{KeepAlive: Config.TCPKeepAlive})
	if err != nil {
		logger.Error("unable to listen TCP", "err", err)
		os.Exit(1)
	}

	registry, err := broker.New(
		broker.WithHistorySize(Config.HistorySize),
		broker.WithLogger(logger),
	)
	if err != nil {
		logger.Error("invalid config", "err", err)
		listener.Close()
		os.Exit(1)
	}

	server, err := chat.NewServer(
		registry,
		chat.WithLogger(logger),
		chat.WithSessionConfig(session.Config{
			ReadTimeout:  Config.ClientIdleTimeout,
			WriteTimeout: Config.ClientWriteTimeout,
			OutboxSize:   Config.OutboxSize,
			MaxLineSize:  Config.MaxLineSize,
		}),
	)
	if err != nil {
		logger.Error("can't start chat server", "err", err)
		listener.Close()
		os.Exit(1)
	}

	listeners := []net.Listener{listener}
	if Config.WebSocketAddress != "" {
		wl, err := wsnet.Listen(Config.WebSocketAddress, Config.WebSocketPath)
		if err != nil {
			logger.Error("unable to listen WebSocket", "err", err)
			listener.Close()
			os.Exit(1)
		}
		listeners = append(listeners, wl)
	}

	for _, l := range listeners {
		go func(l net.Listener) {
			if err := server.Serve(l); err != nil {
				logger.Error("listener stopped", "err", err)
				stop()
			}
		}(l)
	}
	logger.Info("chat server has started", "addr", node)

	<-ctx.Done()
	logger.Info("got stop signal")
	logger.Info("chat server stopped", "duration", server.Shutdown(10*time.Second))
}
