// Package logger provides structured logging with colored console output
// and an append-only log file, using log/slog.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ANSI color codes for terminal output.
const (
	colorReset     = "\033[0m"
	colorRed       = "\033[31m"
	colorGreen     = "\033[32m"
	colorYellow    = "\033[33m"
	colorLightBlue = "\033[94m"
	colorMagenta   = "\033[35m"
	colorCyan      = "\033[36m"
	colorGray      = "\033[90m"
)

// coloredAttrKeys maps slog attribute keys to ANSI color codes for value highlighting.
var coloredAttrKeys = map[string]string{
	"platform": colorLightBlue,
	"channel":  colorMagenta,
	"overlay":  colorMagenta,
	"tick_id":  colorGray,
}

type tickIDKey struct{}

// WithTickID returns a context carrying the ID of the tick being executed.
// Records logged with that context get a tick_id attribute.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickIDKey{}, id)
}

// TickID returns the tick ID stored in ctx, or "".
func TickID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(tickIDKey{}).(string)
	return id
}

// Config holds logger configuration options.
type Config struct {
	Level     slog.Level
	FileLevel slog.Level
	Colored   bool
	// LogFile is the append-only log file. Empty disables file output.
	LogFile string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		FileLevel: slog.LevelInfo,
		Colored:   true,
	}
}

// Logger wraps slog.Logger so packages share one handler chain.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Setup creates a new Logger based on the provided configuration.
// The log file is best effort: if it cannot be opened the logger falls
// back to console output and reports the problem through the returned
// error, which callers are expected to log rather than treat as fatal.
func Setup(cfg Config) (*Logger, error) {
	return setup(os.Stdout, cfg)
}

func setup(console io.Writer, cfg Config) (*Logger, error) {
	handlers := []slog.Handler{newColorHandler(console, cfg.Level, cfg.Colored)}

	var (
		logFile *os.File
		fileErr error
	)
	if cfg.LogFile != "" {
		logFile, fileErr = openLogFile(cfg.LogFile)
		if fileErr == nil {
			handlers = append(handlers, newColorHandler(logFile, cfg.FileLevel, false))
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	return &Logger{Logger: slog.New(handler), file: logFile}, fileErr
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// With returns a Logger that includes the given attributes in each record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), file: l.file}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type colorHandler struct {
	mu      *sync.Mutex
	writer  io.Writer
	level   slog.Level
	colored bool
	attrs   []slog.Attr
	// group is the dotted key prefix of the open groups, e.g. "http.req.".
	group string
}

func newColorHandler(w io.Writer, level slog.Level, colored bool) *colorHandler {
	return &colorHandler{
		mu:      &sync.Mutex{},
		writer:  w,
		level:   level,
		colored: colored,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle writes one line: "<time> - <LEVEL> - <message> key=value...".
// Write errors are ignored; logging never interrupts the caller.
func (h *colorHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := record.Time.Format("2006-01-02 15:04:05")
	levelStr := record.Level.String()

	if h.colored {
		fmt.Fprintf(h.writer, "%s%s%s - %s%s%s - %s",
			colorGray, timeStr, colorReset,
			h.levelColor(record.Level), levelStr, colorReset,
			record.Message,
		)
	} else {
		fmt.Fprintf(h.writer, "%s - %s - %s", timeStr, levelStr, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(h.qualify(a))
		return true
	})
	if id := TickID(ctx); id != "" {
		h.writeAttr(slog.String("tick_id", id))
	}

	fmt.Fprintln(h.writer)
	return nil
}

func (h *colorHandler) writeAttr(a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			if a.Key != "" {
				member.Key = a.Key + "." + member.Key
			}
			h.writeAttr(member)
		}
		return
	}

	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(h.writer, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(h.writer, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	all := copyAttrs(h.attrs)
	for _, a := range attrs {
		all = append(all, h.qualify(a))
	}
	return &colorHandler{
		mu:      h.mu,
		writer:  h.writer,
		level:   h.level,
		colored: h.colored,
		attrs:   all,
		group:   h.group,
	}
}

// WithGroup prefixes the keys of later attributes with name and a dot.
func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &colorHandler{
		mu:      h.mu,
		writer:  h.writer,
		level:   h.level,
		colored: h.colored,
		attrs:   copyAttrs(h.attrs),
		group:   h.group + name + ".",
	}
}

func (h *colorHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" && a.Key != "" {
		a.Key = h.group + a.Key
	}
	return a
}

func copyAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	cp := make([]slog.Attr, len(attrs))
	copy(cp, attrs)
	return cp
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

// multiHandler fans a record out to every handler. A failing handler does
// not prevent the others from receiving the record.
type multiHandler struct {
	handlers []slog.Handler
}

func (handler *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handler *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range handler.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (handler *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (handler *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
