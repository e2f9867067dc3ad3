package logger

import (
	"context"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

// ColorTextHandler is a slog.TextHandler that prefixes each record's message
// with its level, colored the way the status renderer colors health states.
type ColorTextHandler struct {
	*slog.TextHandler
	levels map[slog.Level]*color.Color
}

// NewColorTextHandler builds a handler writing to w. Construction implies
// color output; callers that want plain text use slog.NewTextHandler.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	levels := map[slog.Level]*color.Color{
		slog.LevelDebug: color.New(color.FgCyan),
		slog.LevelInfo:  color.New(color.FgGreen),
		slog.LevelWarn:  color.New(color.FgYellow),
		slog.LevelError: color.New(color.FgRed),
	}
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		levels:      levels,
	}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if c, ok := h.levels[r.Level]; ok {
		r.Message = c.Sprint(r.Level.String()) + "  " + r.Message
	}
	return h.TextHandler.Handle(ctx, r)
}
