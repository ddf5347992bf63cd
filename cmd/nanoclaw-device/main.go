// Command nanoclaw-device runs the touchscreen device client: it drives
// the touch pipeline and device state machine, renders to a display
// driver, and maintains a reconnecting bus connection to the host.
//
// Usage:
//
//	nanoclaw-device [flags]
//
// Flags:
//
//	-config string         YAML config file overlay (applied after env)
//	-device-id string      Device identity used as envelope source
//	-bus-url string        Host bus websocket URL
//	-store-path string     sqlite database path (empty uses in-memory storage)
//	-protocol-log string   File path for protocol event logging (CBOR format)
//	-simulate              Inject synthetic touch events on a timer
//	-interactive           Expose a readline console that injects DeviceActions as commands
//	-log-level string      debug, info, warn, error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nanoclaw/nanoclaw/internal/bus"
	"github.com/nanoclaw/nanoclaw/internal/config"
	"github.com/nanoclaw/nanoclaw/internal/deviceloop"
	"github.com/nanoclaw/nanoclaw/internal/devicestate"
	"github.com/nanoclaw/nanoclaw/internal/discovery"
	"github.com/nanoclaw/nanoclaw/internal/drivers"
	hostlog "github.com/nanoclaw/nanoclaw/internal/log"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/storage"
	"github.com/nanoclaw/nanoclaw/internal/touch"
)

func main() {
	cfg := config.DeviceConfigFromEnv()

	var (
		configPath    string
		protocolLog   string
		logLevel      string
		simulate      bool
		interactive   bool
		advertisePort int
	)
	flag.StringVar(&configPath, "config", "", "YAML config file overlay")
	flag.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "Device identity used as envelope source")
	flag.StringVar(&cfg.BusURL, "bus-url", cfg.BusURL, "Host bus websocket URL")
	flag.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "sqlite database path (empty uses in-memory storage)")
	flag.StringVar(&protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.BoolVar(&simulate, "simulate", false, "Inject synthetic touch events on a timer")
	flag.BoolVar(&interactive, "interactive", false, "Expose a readline console that injects DeviceActions as commands")
	flag.IntVar(&advertisePort, "advertise-port", 0, "If non-zero, advertise this device over mDNS on the given port")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn, error")
	flag.Parse()

	if configPath != "" {
		overlaid, err := config.LoadDeviceConfig(configPath)
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

	kv, closeKV, err := openKV(cfg.StorePath)
	if err != nil {
		fatal("open storage: %v", err)
	}
	defer closeKV()

	state := devicestate.New(cfg.DeviceID, cfg.HostAllowlist, kv)
	pipeline := touch.New(touch.Bounds{Width: cfg.DisplayWidth, Height: cfg.DisplayHeight})
	loop := deviceloop.New(deviceloop.Config{
		RenderIntervalMS:  cfg.RenderIntervalMS,
		OfflineTimeoutMS:  cfg.OfflineTimeoutMS,
		InflightTimeoutMS: cfg.InflightTimeoutMS,
	}, state, pipeline)

	display := drivers.NewSimulatedDisplay(cfg.DisplayWidth, cfg.DisplayHeight)
	if err := display.Init(); err != nil {
		fatal("init display: %v", err)
	}
	touchDriver := drivers.NewSimulatedTouch()

	inbound := make(chan *protocol.TransportMessage, 128)
	client := bus.NewClient(bus.ClientConfig{
		URL:      cfg.BusURL,
		DeviceID: cfg.DeviceID,
		Logger:   protoLogger,
		OnMessage: func(msg *protocol.TransportMessage) {
			select {
			case inbound <- msg:
			default:
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		slog.Warn("initial bus connect failed, will keep retrying", "error", err)
	}
	defer client.Stop()

	if simulate {
		go simulateTouches(ctx, touchDriver, cfg.DisplayWidth, cfg.DisplayHeight)
	}
	if interactive {
		go runInteractiveConsole(ctx, cfg.DeviceID, inbound)
	}
	if advertisePort != 0 {
		advertiser := discovery.New()
		if err := advertiser.Advertise(ctx, discovery.Info{DeviceID: cfg.DeviceID, Port: advertisePort}, nil); err != nil {
			slog.Warn("mDNS advertise failed", "error", err)
		}
		defer advertiser.Stop()
	}

	slog.Info("nanoclaw-device starting", "device_id", cfg.DeviceID, "bus_url", cfg.BusURL)

	ticker := time.NewTicker(time.Duration(cfg.TickIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case t := <-ticker.C:
			runStep(loop, client, touchDriver, inbound, uint64(t.UnixMilli()))
		}
	}
}

func runStep(loop *deviceloop.Loop, client *bus.Client, touchDriver *drivers.SimulatedTouch, inbound chan *protocol.TransportMessage, nowMS uint64) {
	var frames []*protocol.TransportMessage
	for {
		select {
		case msg := <-inbound:
			frames = append(frames, msg)
			continue
		default:
		}
		break
	}

	out := loop.Step(nowMS, frames, touchDriver, client.IsConnected())

	for _, msg := range out.Outbound {
		if err := client.Send(msg); err != nil {
			slog.Debug("outbound send failed", "error", err)
		}
	}
	for _, uiMsg := range out.UIMessages {
		slog.Info("ui", "message", uiMsg)
	}
	if out.InSafeMode {
		slog.Warn("device in safe mode")
	}
}

func simulateTouches(ctx context.Context, touchDriver *drivers.SimulatedTouch, width, height uint16) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	x, y := width/2, height/2
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			touchDriver.Inject(x, y, protocol.TouchDown)
			touchDriver.Inject(x, y, protocol.TouchUp)
		}
	}
}

// runInteractiveConsole exposes a readline prompt that injects
// DeviceActions as if they had arrived over transport, for exercising
// the state machine and event loop without a host connection.
func runInteractiveConsole(ctx context.Context, deviceID string, inbound chan *protocol.TransportMessage) {
	rl, err := readline.NewEx(&readline.Config{Prompt: "nanoclaw> "})
	if err != nil {
		slog.Error("interactive console unavailable", "error", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		action := protocol.DeviceAction(parts[0])
		var args json.RawMessage
		if len(parts) == 2 {
			args = json.RawMessage(parts[1])
		}
		cmd := protocol.DeviceCommand{Action: action, Args: args}
		payload, err := json.Marshal(cmd)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "bad args: %v\n", err)
			continue
		}
		msg := &protocol.TransportMessage{
			Envelope: protocol.Envelope{V: protocol.ProtocolVersion, DeviceID: deviceID, Source: "console"},
			Kind:     protocol.KindHostCommand,
			Payload:  payload,
		}
		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func openKV(path string) (storage.KV, func(), error) {
	if path == "" {
		return storage.NewMemory(), func() {}, nil
	}
	sqliteKV, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return sqliteKV, func() { sqliteKV.Close() }, nil
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
