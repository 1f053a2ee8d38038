package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type (
	// Configuration - server configuration
	Configuration struct {
		// IPAddress - bind the address
		IPAddress string
		// Port - bind the port
		Port uint
		// WebSocketAddress - optional address to serve WebSocket clients
		WebSocketAddress string
		// WebSocketPath - HTTP path to upgrade WebSocket clients
		WebSocketPath string
		// ClientIdleTimeout - idle period before client is disconnected
		ClientIdleTimeout time.Duration
		// ClientWriteTimeout - max duration of single write to client
		ClientWriteTimeout time.Duration
		// TCPKeepAlive - keep-alive probing period of TCP connections
		TCPKeepAlive time.Duration
		// HistorySize - num of messages from chat history which is pushed to newly logged in client
		HistorySize int
		// OutboxSize - num of messages which may wait for sending to client
		OutboxSize int
		// MaxLineSize - max size of inbound line in bytes
		MaxLineSize int
		// LogLevel - min level of log records
		LogLevel slog.Level
		// LogFormat - text or json
		LogFormat string
	}
)

var (
	// Config - current configuration of the server
	Config = Configuration{
		IPAddress:          "127.0.0.1",
		Port:               8888,
		WebSocketPath:      "/chat",
		ClientIdleTimeout:  10 * time.Minute,
		ClientWriteTimeout: 10 * time.Second,
		TCPKeepAlive:       30 * time.Second,
		HistorySize:        10,
		OutboxSize:         64,
		MaxLineSize:        4096,
		LogLevel:           slog.LevelInfo,
		LogFormat:          "text",
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint, may be overwritten with -ldflags "-X main.Version=..."
	Version = "0.4.0"
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch text chat server over TCP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.IPAddress, "ip", Config.IPAddress, "Listen address")
	flag.UintVar(&Config.Port, "port", Config.Port, "Listen port")
	flag.StringVar(&Config.WebSocketAddress, "ws", "", "Listen address for WebSocket clients, disabled if empty")
	flag.StringVar(&Config.WebSocketPath, "ws-path", Config.WebSocketPath, "HTTP path to upgrade WebSocket clients")
	clientTTL := int(Config.ClientIdleTimeout / time.Second)
	flag.IntVar(&clientTTL, "client-timeout", clientTTL, "Idle duration in seconds before client is disconnected, 0 to disable.")
	writeTTL := int(Config.ClientWriteTimeout / time.Second)
	flag.IntVar(&writeTTL, "write-timeout", writeTTL, "Max duration in seconds of single write to client.")
	keepAlive := int(Config.TCPKeepAlive / time.Second)
	flag.IntVar(&keepAlive, "tcp-keepalive", keepAlive, "TCP keep-alive period in seconds, 0 to disable.")
	flag.IntVar(&Config.HistorySize, "history", Config.HistorySize, "Num of messages from chat history which is pushed to newly logged in client.")
	flag.IntVar(&Config.OutboxSize, "outbox", Config.OutboxSize, "Num of messages which may wait for sending to client before it is dropped as slow.")
	flag.IntVar(&Config.MaxLineSize, "max-line", Config.MaxLineSize, "Max size of inbound line in bytes.")
	logLevel := Config.LogLevel.String()
	flag.StringVar(&logLevel, "log-level", logLevel, "Log level: debug, info, warn or error.")
	flag.StringVar(&Config.LogFormat, "log-format", Config.LogFormat, "Log format: text or json.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	switch {
	case clientTTL < 0:
		printError("client-timeout value should be greater or equal 0")
		os.Exit(1)
	case writeTTL < 1:
		printError("write-timeout value should be greater or equal 1")
		os.Exit(1)
	case keepAlive < 0:
		printError("tcp-keepalive value should be greater or equal 0")
		os.Exit(1)
	case Config.HistorySize < 1:
		printError("history value should be greater or equal 1")
		os.Exit(1)
	case Config.OutboxSize < Config.HistorySize+2:
		printError("outbox value should be greater or equal than history + 2")
		os.Exit(1)
	case Config.MaxLineSize < 1:
		printError("max-line value should be greater or equal 1")
		os.Exit(1)
	case Config.LogFormat != "text" && Config.LogFormat != "json":
		printError("log-format value should be text or json")
		os.Exit(1)
	}
	if err := Config.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	Config.ClientIdleTimeout = time.Duration(clientTTL) * time.Second
	if clientTTL == 0 {
		Config.ClientIdleTimeout = -1
	}
	Config.ClientWriteTimeout = time.Duration(writeTTL) * time.Second
	Config.TCPKeepAlive = time.Duration(keepAlive) * time.Second
	if keepAlive == 0 {
		Config.TCPKeepAlive = -1
	}

	fmt.Fprint(out, "TCP chat server is launching, press Ctrl-C to stop...\n")
}
