// Package gologger backs the glog logging contract with log/slog.
package gologger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

type Options struct {
	Level  string
	Format string
	Writer io.Writer
}

// Logger implements glog.Logger, glog.FieldsLogger and glog.LoggerProvider.
// Fatal logs at LevelFatal and leaves exiting to the caller.
type Logger struct {
	base *slog.Logger
	ctx  context.Context
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Logger)(nil)
)

func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelName}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(writer, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOpts)
	default:
		return nil, fmt.Errorf("gologger: unsupported format %q", opts.Format)
	}
	return &Logger{base: slog.New(handler), ctx: context.Background()}, nil
}

func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return slog.LevelInfo, fmt.Errorf("gologger: unsupported level %q", value)
	}
}

func replaceLevelName(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}
	switch level {
	case LevelTrace:
		attr.Value = slog.StringValue("TRACE")
	case LevelFatal:
		attr.Value = slog.StringValue("FATAL")
	}
	return attr
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Log(l.ctx, level, msg, args...)
}

func (l *Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args...) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Logger{base: l.base, ctx: ctx}
}

// WithFields attaches fields in key order so output is stable.
func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &Logger{base: l.base.With(args...), ctx: l.ctx}
}

func (l *Logger) GetLogger(name string) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{base: l.base.With("logger", name), ctx: l.ctx}
}

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}
