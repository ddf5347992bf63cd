package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at debug level,
// for development/console use.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	switch event.Category {
	case CategoryFrame:
		attrs = append(attrs, slog.String("frame_kind", event.FrameKind), slog.Int("frame_size", event.FrameSize))
	case CategoryStateChange:
		attrs = append(attrs, slog.String("old_state", event.OldState), slog.String("new_state", event.NewState))
		if event.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Reason))
		}
	case CategoryError:
		attrs = append(attrs, slog.String("error", event.ErrMessage))
	}
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol_event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
