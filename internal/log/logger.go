package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with a component name attached to every record.
// Each record carries one component and one copy of every key bound with
// With; a component in the record arguments replaces the logger's.
type Logger struct {
	*slog.Logger
	component string
	bound     map[string]bool
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// NewHandler builds the slog handler described by config
func NewHandler(config Config) slog.Handler {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: config.Level}
	if strings.EqualFold(config.Format, "json") {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = NewHandler(config)
	}
	component := config.Component
	if component == "" {
		component = ComponentApp
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	bound := make(map[string]bool, len(l.bound)+len(args)/2)
	for k := range l.bound {
		bound[k] = true
	}
	for _, k := range argKeys(args) {
		bound[k] = true
	}
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
		bound:     bound,
	}
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
		bound:     l.bound,
	}
}

// argKeys lists the attribute keys of slog-style key/value arguments.
func argKeys(args []any) []string {
	var keys []string
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case string:
			keys = append(keys, a)
			i++
		case slog.Attr:
			keys = append(keys, a.Key)
		}
	}
	return keys
}

// recordArgs prepends the component and drops keys already bound.
func (l *Logger) recordArgs(args []any) []any {
	component := l.component
	out := make([]any, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case string:
			if i+1 == len(args) {
				out = append(out, a)
				continue
			}
			v := args[i+1]
			i++
			if a == FieldComponent {
				if c, ok := v.(string); ok {
					component = c
				}
				continue
			}
			if l.bound[a] {
				continue
			}
			out = append(out, a, v)
		case slog.Attr:
			if a.Key == FieldComponent {
				component = a.Value.String()
				continue
			}
			if l.bound[a.Key] {
				continue
			}
			out = append(out, a)
		default:
			out = append(out, a)
		}
	}
	return append([]any{FieldComponent, component}, out...)
}

// Log emits a record at level with the component attached.
func (l *Logger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, msg, l.recordArgs(args)...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.Log(context.Background(), slog.LevelInfo, msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.Log(context.Background(), slog.LevelWarn, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.Log(context.Background(), slog.LevelError, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.Log(context.Background(), slog.LevelDebug, msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelDebug, msg, args...)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
