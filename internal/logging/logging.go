// Package logging configures the process-wide slog logger. Loggers handed out
// by L before Setup runs follow whatever handler Setup installs later.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Field names shared by every component.
const (
	KeyComponent  = "component"
	KeyRequestID  = "requestId"
	KeyCommand    = "command"
	KeyTarget     = "target"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
)

type contextKey struct{}

// active is the handler every logger from L ends up writing through.
var active atomic.Pointer[slog.Handler]

// forwarder resolves the active handler on each call and replays the
// WithAttrs/WithGroup calls made on it, in the order they were made.
type forwarder struct {
	derive []func(slog.Handler) slog.Handler
}

func (f *forwarder) resolve() slog.Handler {
	h := *active.Load()
	for _, d := range f.derive {
		h = d(h)
	}
	return h
}

func (f *forwarder) with(d func(slog.Handler) slog.Handler) *forwarder {
	derive := make([]func(slog.Handler) slog.Handler, len(f.derive), len(f.derive)+1)
	copy(derive, f.derive)
	return &forwarder{derive: append(derive, d)}
}

func (f *forwarder) Enabled(ctx context.Context, level slog.Level) bool {
	return f.resolve().Enabled(ctx, level)
}

func (f *forwarder) Handle(ctx context.Context, r slog.Record) error {
	return f.resolve().Handle(ctx, r)
}

func (f *forwarder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *forwarder) WithGroup(name string) slog.Handler {
	return f.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

var root = slog.New(&forwarder{})

func init() {
	install(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(root)
}

func install(h slog.Handler) {
	active.Store(&h)
}

// Options mirror the log_* config keys.
type Options struct {
	Format     string // "text" or "json"
	Level      string
	File       string // empty logs to stdout only
	MaxSizeMB  int
	MaxBackups int
}

// Setup opens the configured destination and installs the handler. The
// returned closer releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	w, closer, err := Output(opts.File, opts.MaxSizeMB, opts.MaxBackups)
	if err != nil {
		return nil, err
	}
	Init(opts.Format, opts.Level, w)
	return closer, nil
}

// Init installs a text or JSON handler writing to output (nil means stdout).
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		install(slog.NewJSONHandler(output, opts))
	} else {
		install(slog.NewTextHandler(output, opts))
	}
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return root.With(slog.String(KeyComponent, component))
}

// WithRequest returns a child logger carrying the request correlation id.
func WithRequest(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String(KeyRequestID, requestID))
}

func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request logger, or the root logger outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return root
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
