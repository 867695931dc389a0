// Command flic2-client pairs with (or quick-verifies) a Flic 2 button
// over a provided BLE link and prints its events until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cvsouth/flic2-go/client"
	"github.com/cvsouth/flic2-go/config"
	"github.com/cvsouth/flic2-go/flic2model"
	"github.com/cvsouth/flic2-go/internal/logging"
	"github.com/cvsouth/flic2-go/store"
	"github.com/cvsouth/flic2-go/transport"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	addressFlag := flag.String("address", "", "button BLE address, e.g. AA:BB:CC:DD:EE:FF (required to pair)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, logFile := setupLogging(cfg)
	defer func() { _ = logFile.Close() }()

	fmt.Printf("=== flic2-client %s ===\n", Version)

	st, err := store.Open(cfg.CredentialDatabase)
	if err != nil {
		logger.Error("open credential store", "error", err)
		os.Exit(1)
	}

	link := newLiveLink(logger)

	c := client.New(link, st, logger, client.Subscriber{
		OnButtonEvent: func(ev flic2model.ButtonEvent) {
			fmt.Printf("event: %s (queued=%v, press=%d)\n", ev.Type, ev.WasQueued, ev.PressCounter)
		},
		OnConnectionStateChanged: func(s flic2model.ConnectionState) {
			logger.Info("connection state changed", "state", s.String())
		},
		OnBatteryLevel: func(level uint8) {
			logger.Info("battery level", "percent", level)
		},
		OnError: func(err error) {
			logger.Warn("client error", "error", err)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Connect(ctx); err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}

	if *addressFlag == "" {
		fmt.Fprintln(os.Stderr, "no -address given; nothing to pair with")
		os.Exit(1)
	}

	addr, err := parseAddress(*addressFlag)
	if err != nil {
		logger.Error("parse address", "error", err)
		os.Exit(1)
	}

	exists, err := st.Exists(*addressFlag)
	if err != nil {
		logger.Error("check stored credentials", "error", err)
		os.Exit(1)
	}

	if exists {
		if err := c.QuickVerify(ctx, *addressFlag); err != nil {
			logger.Error("quick verify", "error", err)
			os.Exit(1)
		}
	} else {
		if _, err := c.Pair(ctx, addr, 0); err != nil {
			logger.Error("pair", "error", err)
			os.Exit(1)
		}
	}

	initTimeout := time.Duration(cfg.Connection.InitEventsTimeoutSeconds) * time.Second
	if err := c.InitButtonEvents(ctx, initTimeout); err != nil {
		logger.Error("init button events", "error", err)
		os.Exit(1)
	}

	fmt.Println("Listening for button events. Press Ctrl+C to exit.")
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("run", "error", err)
	}

	_ = c.Disconnect()
	fmt.Println("\nShutting down...")
}

func setupLogging(cfg *config.ClientConfig) (*slog.Logger, *os.File) {
	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = "flic2-client-debug.log"
	}
	logger, logFile, err := logging.Setup(logPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return logger, logFile
}

func parseAddress(s string) ([6]byte, error) {
	var addr [6]byte
	var a, b, cc, d, e, f int
	n, err := fmt.Sscanf(s, "%02X:%02X:%02X:%02X:%02X:%02X", &a, &b, &cc, &d, &e, &f)
	if err != nil || n != 6 {
		return addr, fmt.Errorf("invalid BLE address %q, want AA:BB:CC:DD:EE:FF", s)
	}
	addr[0], addr[1], addr[2], addr[3], addr[4], addr[5] = byte(a), byte(b), byte(cc), byte(d), byte(e), byte(f)
	return addr, nil
}

// newLiveLink is a placeholder hook for wiring in a real BLE adapter (for
// example tinygo.org/x/bluetooth); this binary ships with the in-memory
// fake so it builds and runs without a physical radio, and callers are
// expected to substitute their own transport.Link.
func newLiveLink(logger *slog.Logger) transport.Link {
	logger.Warn("no BLE adapter wired in; using an in-memory stand-in with no button attached")
	return transport.NewFakeLink(8)
}
