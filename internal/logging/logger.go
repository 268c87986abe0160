// Package logging builds the *slog.Logger every constructor in actorcore
// takes, mirroring the teacher's universal `logger *slog.Logger` parameter
// (e.g. internal/handler/ws/delivery.go's NewWSHandler) and its
// ProvideLogger/ProvideWatermillLogger pair in cmd/fx.go.
//
// Output always goes to stderr in text form; when config.Logger names a
// file path, writes are duplicated to a lumberjack-rotated file so the
// process never blocks on log volume and never grows an unbounded file.
// Records are also passed to an otelslog bridge; that bridge is built
// over a no-op OpenTelemetry logger provider, so nothing is exported
// through it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/noop"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/webitel/actorcore/config"
)

const (
	maxLogSizeMB  = 100
	maxLogBackups = 5
	maxLogAgeDays = 28
)

// New builds the process logger from cfg.Logger/cfg.LogLevel; its otel
// bridge always uses a no-op logger provider.
func New(cfg *config.Config) *slog.Logger {
	return newWithLevel(cfg, parseLevel(cfg.LogLevel))
}

func newWithLevel(cfg *config.Config, level slog.Level) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Logger != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logger,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
			Compress:   true,
		})
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	otelHandler := otelslog.NewHandler("actorcore",
		otelslog.WithLoggerProvider(noop.NewLoggerProvider()))

	return slog.New(fanoutHandler{textHandler, otelHandler})
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetLevel records level in cfg.LogLevel and returns a new logger built
// at that level. It rebuilds the logger wholesale instead of mutating a
// shared *slog.HandlerOptions, since slog handlers are immutable once
// built; loggers built earlier keep their old level.
func SetLevel(cfg *config.Config, level string) *slog.Logger {
	cfg.LogLevel = level
	return newWithLevel(cfg, parseLevel(level))
}

// fanoutHandler duplicates every record to both the text and otel
// handlers, so the same call site feeds stderr/lumberjack and the otel
// log pipeline without callers picking one.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
