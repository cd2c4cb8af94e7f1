package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter prints protocol events through slog at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes one record with the event's attributes.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.LocalRole.String()),
	}
	if event.Remote != "" {
		attrs = append(attrs, slog.String("remote", event.Remote))
	}
	if event.PeerID != "" {
		attrs = append(attrs, slog.String("peer_id", event.PeerID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("code", event.Message.Code),
			slog.String("token", hex.EncodeToString(event.Message.Token)),
			slog.Int("size", event.Message.Size),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Signal != nil:
		attrs = append(attrs, slog.String("signal", event.Signal.Type.String()))
		if event.Signal.Sequence != 0 {
			attrs = append(attrs, slog.Uint64("seq", uint64(event.Signal.Sequence)))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
			slog.Bool("fatal", event.Error.Fatal),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
