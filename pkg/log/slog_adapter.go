package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
// Connectivity transitions are logged at Info level so operators see
// device link changes without enabling debug output.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	level := slog.LevelDebug

	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("frame_size", event.Frame.Size))
	case event.Command != nil:
		attrs = append(attrs,
			slog.Uint64("seq", uint64(event.Command.Seq)),
			slog.String("operation", event.Command.Operation.String()),
			slog.String("path", event.Command.Path),
		)
		if event.Command.Target != "" {
			attrs = append(attrs, slog.String("target", event.Command.Target))
		}
		if event.Command.Status != nil {
			attrs = append(attrs,
				slog.String("status", event.Command.Status.String()),
				slog.Duration("round_trip", event.Command.RoundTrip),
			)
		}
	case event.Connectivity != nil:
		level = slog.LevelInfo
		attrs = append(attrs, slog.String("connectivity", event.Connectivity.State.String()))
		if event.Connectivity.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Connectivity.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
