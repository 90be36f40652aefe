// Package logging provides the slog handler and level helpers used by surveyor.
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Silent is above every standard level.
const Silent = slog.Level(100)

// New creates a logger writing surveyor's line format to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, level))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(NewHandler(io.Discard, Silent))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// LevelFromString converts debug/info/warn/error (case-insensitive) to a
// slog.Level. Unknown strings map to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "silent", "off":
		return Silent
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps CLI flags to a level: quiet silences everything,
// 0 is warn, 1 is info, 2+ is debug.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return Silent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Handler formats records as:
//
//	TIMESTAMP [level] message | key=value key=value
type Handler struct {
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

// NewHandler creates a Handler.
func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(strings.ToLower(r.Level.String()))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	if len(attrs) > 0 {
		buf.WriteString(" |")
		for _, a := range attrs {
			if a.Key == "" {
				continue
			}
			fmt.Fprintf(&buf, " %s=%s", a.Key, formatValue(a.Value.Resolve()))
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.qualify(a))
	}
	return next
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *Handler) clone() *Handler {
	return &Handler{
		w:      h.w,
		level:  h.level,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
		mu:     h.mu,
	}
}

func (h *Handler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	default:
		return v.String()
	}
}
