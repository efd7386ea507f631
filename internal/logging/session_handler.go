package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID identifies one launcher run across the console and file logs.
const FieldSessionID = "session_id"

// sessionIDHandler wraps another handler to inject a session_id attribute into all records.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{base: base, sessionID: sessionID}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{base: h.base.WithAttrs(attrs), sessionID: h.sessionID}
}

// WithGroup keeps session_id at the top level by adding it before the group opens.
func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	base := h.base.WithAttrs([]slog.Attr{slog.String(FieldSessionID, h.sessionID)}).WithGroup(name)
	return &groupedSessionHandler{base: base}
}

type groupedSessionHandler struct {
	base slog.Handler
}

func (h *groupedSessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *groupedSessionHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.base.Handle(ctx, record)
}

func (h *groupedSessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &groupedSessionHandler{base: h.base.WithAttrs(attrs)}
}

func (h *groupedSessionHandler) WithGroup(name string) slog.Handler {
	return &groupedSessionHandler{base: h.base.WithGroup(name)}
}
