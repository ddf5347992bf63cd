// Command nanoclaw-host runs the host daemon: it accepts device
// websocket connections, mediates sandboxed agent execution, and serves
// scheduled tasks.
//
// Usage:
//
//	nanoclaw-host [flags]
//
// Flags:
//
//	-config string          YAML config file overlaid on env; when set, values of the other config flags are not kept
//	-host-id string         Host identity used as envelope source
//	-bus-address string     Listen address for the device websocket bus
//	-store-path string      sqlite database path (empty uses in-memory storage)
//	-container-backend string  apple or docker
//	-dry-run                Short-circuit sandbox runs instead of executing them
//	-protocol-log string    File path for protocol event logging (CBOR format)
//	-log-level string       debug, info, warn, error
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

	_ "github.com/mattn/go-sqlite3"
	"github.com/nanoclaw/nanoclaw/internal/bus"
	"github.com/nanoclaw/nanoclaw/internal/config"
	"github.com/nanoclaw/nanoclaw/internal/hostloop"
	hostlog "github.com/nanoclaw/nanoclaw/internal/log"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/queue"
	"github.com/nanoclaw/nanoclaw/internal/sandbox"
	"github.com/nanoclaw/nanoclaw/internal/scheduler"
)

func main() {
	cfg := config.HostConfigFromEnv()

	var (
		configPath  string
		protocolLog string
		logLevel    string
	)
	flag.StringVar(&configPath, "config", "", "YAML config file overlay")
	flag.StringVar(&cfg.HostID, "host-id", cfg.HostID, "Host identity used as envelope source")
	flag.StringVar(&cfg.BusAddress, "bus-address", cfg.BusAddress, "Listen address for the device websocket bus")
	flag.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "sqlite database path (empty uses in-memory storage)")
	flag.StringVar(&cfg.ContainerBackend, "container-backend", cfg.ContainerBackend, "apple or docker")
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Short-circuit sandbox runs instead of executing them")
	flag.StringVar(&protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn, error")
	flag.Parse()

	if configPath != "" {
		overlaid, err := config.LoadHostConfig(configPath)
		if err != nil {
			fatal("load config: %v", err)
		}
		cfg = overlaid
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
	slog.SetDefault(logger)

	var protoLogger hostlog.Logger = hostlog.NoopLogger{}
	if protocolLog != "" {
		fileLogger, err := hostlog.NewFileLogger(protocolLog)
		if err != nil {
			fatal("open protocol log: %v", err)
		}
		defer fileLogger.Close()
		protoLogger = fileLogger
	}

	store, closeStore, err := openScheduleStore(cfg.StorePath)
	if err != nil {
		fatal("open scheduler store: %v", err)
	}
	defer closeStore()

	backend, closeBackend, err := openSandboxBackend(cfg.ContainerBackend)
	if err != nil {
		fatal("open sandbox backend: %v", err)
	}
	defer closeBackend()

	dispatcher := sandbox.New(backend, sandbox.Config{
		MountPolicy:   sandbox.MountPolicy{AllowedPrefixes: cfg.MountAllowlist},
		EgressPolicy:  sandbox.EgressPolicy{AllowedHosts: cfg.EgressAllowlist},
		BaseBackoffMS: cfg.QueueRetryBackoffMS,
		DryRun:        cfg.DryRun,
	})

	q := queue.New(queue.Config{
		MaxInflight:   cfg.MaxInflight,
		BaseBackoffMS: cfg.QueueRetryBackoffMS,
		MaxAttempts:   cfg.QueueRetryMaxAttempts,
	})

	var transport *hostloop.Transport
	server := bus.NewServer(bus.ServerConfig{
		Address: cfg.BusAddress,
		Logger:  protoLogger,
		OnMessage: func(deviceID string, msg *protocol.TransportMessage) {
			transport.PushInbound(deviceID, msg)
		},
	})
	transport = hostloop.NewTransport(server)

	runtime := hostloop.New(hostloop.Config{
		HostID:                  cfg.HostID,
		AllowedSources:          cfg.AllowedSources,
		AllowedHostActions:      deviceActions(cfg.AllowedHostActions),
		HealthLogIntervalMS:     cfg.HealthLogIntervalMS,
		SchedulerPollIntervalMS: cfg.SchedulerPollIntervalMS,
	}, transport, hostloop.NoopBusLog{}, q, store, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(ctx); err != nil {
			slog.Error("bus server stopped", "error", err)
		}
	}()

	slog.Info("nanoclaw-host starting", "host_id", cfg.HostID, "bus_address", cfg.BusAddress, "backend", cfg.ContainerBackend)

	ticker := time.NewTicker(time.Duration(cfg.TickIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			_ = server.Stop()
			return
		case t := <-ticker.C:
			runtime.Step(uint64(t.UnixMilli()))
		}
	}
}

func openScheduleStore(path string) (scheduler.Store, func(), error) {
	if path == "" {
		return scheduler.NewMemoryStore(), func() {}, nil
	}
	store, err := scheduler.OpenSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func openSandboxBackend(name string) (sandbox.Backend, func(), error) {
	switch name {
	case "docker":
		backend, err := sandbox.NewDockerBackend()
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { backend.Close() }, nil
	default:
		return sandbox.NewAppleBackend(), func() {}, nil
	}
}

func deviceActions(names []string) []protocol.DeviceAction {
	actions := make([]protocol.DeviceAction, len(names))
	for i, name := range names {
		actions[i] = protocol.DeviceAction(name)
	}
	return actions
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
