package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin structured wrapper over zerolog.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string `yaml:"level" default:"info"`       // debug, info, warn, error
	Format     string `yaml:"format" default:"json"`      // json or console
	Output     string `yaml:"output" default:"stdout"`    // stdout, stderr or a file path
	TimeFormat string `yaml:"time_format" default:""`     // empty means RFC3339Nano
	Component  string `yaml:"component" default:"fusion"` // attached to every entry
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return &Logger{zl: ctx.Logger()}, nil
}

// FromWriter builds a logger that writes JSON to w. Used by tests and tools.
func FromWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.attach(ctx)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

// Field is a typed key/value attached to a log entry.
type Field interface {
	AddTo(event *zerolog.Event)
	attach(ctx zerolog.Context) zerolog.Context
}

type stringField struct{ key, value string }

func (f stringField) AddTo(e *zerolog.Event)                   { e.Str(f.key, f.value) }
func (f stringField) attach(c zerolog.Context) zerolog.Context { return c.Str(f.key, f.value) }

type intField struct {
	key   string
	value int64
}

func (f intField) AddTo(e *zerolog.Event)                   { e.Int64(f.key, f.value) }
func (f intField) attach(c zerolog.Context) zerolog.Context { return c.Int64(f.key, f.value) }

type floatField struct {
	key   string
	value float64
}

func (f floatField) AddTo(e *zerolog.Event)                   { e.Float64(f.key, f.value) }
func (f floatField) attach(c zerolog.Context) zerolog.Context { return c.Float64(f.key, f.value) }

type boolField struct {
	key   string
	value bool
}

func (f boolField) AddTo(e *zerolog.Event)                   { e.Bool(f.key, f.value) }
func (f boolField) attach(c zerolog.Context) zerolog.Context { return c.Bool(f.key, f.value) }

type errorField struct{ err error }

func (f errorField) AddTo(e *zerolog.Event)                   { e.Err(f.err) }
func (f errorField) attach(c zerolog.Context) zerolog.Context { return c.Err(f.err) }

type anyField struct {
	key   string
	value any
}

func (f anyField) AddTo(e *zerolog.Event)                   { e.Interface(f.key, f.value) }
func (f anyField) attach(c zerolog.Context) zerolog.Context { return c.Interface(f.key, f.value) }

func String(key, value string) Field       { return stringField{key, value} }
func Int(key string, value int) Field      { return intField{key, int64(value)} }
func Int64(key string, value int64) Field  { return intField{key, value} }
func Float64(key string, v float64) Field  { return floatField{key, v} }
func Bool(key string, value bool) Field    { return boolField{key, value} }
func Error(err error) Field                { return errorField{err} }
func Any(key string, value any) Field      { return anyField{key, value} }
func Strings(key string, v []string) Field { return stringField{key, strings.Join(v, ", ")} }

// Duration logs d in milliseconds.
func Duration(key string, d time.Duration) Field {
	return intField{key, d.Milliseconds()}
}
