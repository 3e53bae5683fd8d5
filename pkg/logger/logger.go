package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const FormatConsole = "console"

// maxStackFrames bounds the stack attached to error and warn entries.
const maxStackFrames = 32

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	// Format selects the encoder; "console" renders human readable lines, anything else JSON.
	Format string
	Output io.Writer
}

// Logger carries per-request fields through context.Context.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{base: base, warnStack: opts.WarnStack}
}

// Nop returns a logger that discards every entry.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Level reports the minimum level that is written.
func (l *Logger) Level() zerolog.Level {
	return l.base.GetLevel()
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return &l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := build(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return addField(c, key, value) })
}

// WithFields adds fields in key order so entries are stable across runs.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		for _, k := range keys {
			c = addField(c, k, fields[k])
		}
		return c
	})
}

func addField(c zerolog.Context, key string, value any) zerolog.Context {
	switch v := value.(type) {
	case string:
		return c.Str(key, v)
	case time.Time:
		return c.Time(key, v)
	case error:
		return c.AnErr(key, v)
	case fmt.Stringer:
		return c.Stringer(key, v)
	default:
		return c.Interface(key, v)
	}
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithProductID(ctx context.Context, productID string) context.Context {
	return l.WithField(ctx, "product_id", productID)
}

func (l *Logger) WithRunID(ctx context.Context, runID string) context.Context {
	return l.WithField(ctx, "run_id", runID)
}

func (l *Logger) WithSubject(ctx context.Context, subject string) context.Context {
	return l.WithField(ctx, "subject", subject)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.from(ctx).Warn()
	if l.warnStack && event.Enabled() {
		event = event.Strs("stack", callers())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Error()
	if !event.Enabled() {
		return
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Strs("stack", callers()).Msg(msg)
}

// callers renders the call stack above the logger as "func file:line".
func callers() []string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		}
		if !more {
			break
		}
	}
	return out
}
