// Package log provides structured logging for jetlite.
//
// The logging system supports multiple categories:
//   - System: CLI lifecycle, configuration
//   - Translation: per-command rewrite events
//   - Storage: SQLite access
//   - Watch: file watcher events
//
// Each category can be configured independently with its own level and output.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a logging severity level.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff // Disable logging entirely
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON writes the level name rather than its number.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// ParseLevel parses a level string.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR", "ERR":
		return LevelError, nil
	case "OFF", "NONE":
		return LevelOff, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Category identifies the logging category.
type Category string

const (
	CategorySystem      Category = "system"
	CategoryTranslation Category = "translation"
	CategoryStorage     Category = "storage"
	CategoryWatch       Category = "watch"
)

var categories = []Category{
	CategorySystem,
	CategoryTranslation,
	CategoryStorage,
	CategoryWatch,
}

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota // Human-readable text
	FormatJSON               // Structured JSON
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// Entry represents a single log entry.
type Entry struct {
	Time     time.Time              `json:"time"`
	Level    Level                  `json:"level"`
	Category Category               `json:"category"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	ErrorStr string                 `json:"error,omitempty"`
}

// Logger is a categorised, levelled logger. It is safe for concurrent use.
type Logger struct {
	mu      sync.RWMutex
	levels  map[Category]Level
	outputs map[Category]io.Writer
	format  Format

	entriesLogged int64
}

// Config holds logger configuration.
type Config struct {
	DefaultLevel   Level
	CategoryLevels map[Category]Level
	Output         io.Writer // os.Stderr if nil
	Format         Format
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLevel: LevelInfo,
		Output:       os.Stderr,
		Format:       FormatText,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	l := &Logger{
		levels:  make(map[Category]Level),
		outputs: make(map[Category]io.Writer),
		format:  cfg.Format,
	}

	for _, cat := range categories {
		l.levels[cat] = cfg.DefaultLevel
		l.outputs[cat] = cfg.Output
	}
	for cat, level := range cfg.CategoryLevels {
		l.levels[cat] = level
	}

	return l
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(Config{DefaultLevel: LevelOff, Output: io.Discard})
}

// SetLevel sets the log level for a category.
func (l *Logger) SetLevel(cat Category, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[cat] = level
}

// Enabled reports whether level is logged for cat.
func (l *Logger) Enabled(cat Category, level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.levels[cat] && level != LevelOff
}

// Logged returns the number of entries written so far.
func (l *Logger) Logged() int64 {
	return atomic.LoadInt64(&l.entriesLogged)
}

// System returns a category logger for system events.
func (l *Logger) System() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategorySystem}
}

// Translation returns a category logger for rewrite events.
func (l *Logger) Translation() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryTranslation}
}

// Storage returns a category logger for database access.
func (l *Logger) Storage() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryStorage}
}

// Watch returns a category logger for file watcher events.
func (l *Logger) Watch() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryWatch}
}

func (l *Logger) log(level Level, cat Category, msg string, err error, fields ...interface{}) {
	if !l.Enabled(cat, level) {
		return
	}

	l.mu.RLock()
	output := l.outputs[cat]
	format := l.format
	l.mu.RUnlock()

	entry := &Entry{
		Time:     time.Now(),
		Level:    level,
		Category: cat,
		Message:  msg,
	}
	if err != nil {
		entry.ErrorStr = err.Error()
	}

	// Fields are key/value pairs; a dangling key is dropped.
	if len(fields) > 1 {
		entry.Fields = make(map[string]interface{}, len(fields)/2)
		for i := 0; i < len(fields)-1; i += 2 {
			if key, ok := fields[i].(string); ok {
				entry.Fields[key] = fields[i+1]
			}
		}
	}

	var line string
	switch format {
	case FormatJSON:
		data, _ := json.Marshal(entry)
		line = string(data) + "\n"
	default:
		line = formatText(entry)
	}

	l.mu.Lock()
	output.Write([]byte(line))
	l.mu.Unlock()
	atomic.AddInt64(&l.entriesLogged, 1)
}

func formatText(entry *Entry) string {
	var buf strings.Builder

	buf.WriteString(entry.Time.Format("2006-01-02 15:04:05.000"))
	buf.WriteString(" ")
	buf.WriteString(fmt.Sprintf("%-5s", entry.Level.String()))
	buf.WriteString(" [")
	buf.WriteString(string(entry.Category))
	buf.WriteString("] ")
	buf.WriteString(entry.Message)

	if entry.ErrorStr != "" {
		buf.WriteString(" error=")
		buf.WriteString(fmt.Sprintf("%q", entry.ErrorStr))
	}

	// Sorted so text output is stable.
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(" ")
		buf.WriteString(k)
		buf.WriteString("=")
		buf.WriteString(fmt.Sprintf("%v", entry.Fields[k]))
	}

	buf.WriteString("\n")
	return buf.String()
}

// CategoryLogger is a logger bound to a specific category.
type CategoryLogger struct {
	logger   *Logger
	category Category
}

func (cl *CategoryLogger) Debug(msg string, fields ...interface{}) {
	cl.logger.log(LevelDebug, cl.category, msg, nil, fields...)
}

func (cl *CategoryLogger) Info(msg string, fields ...interface{}) {
	cl.logger.log(LevelInfo, cl.category, msg, nil, fields...)
}

func (cl *CategoryLogger) Warn(msg string, fields ...interface{}) {
	cl.logger.log(LevelWarn, cl.category, msg, nil, fields...)
}

func (cl *CategoryLogger) Error(msg string, err error, fields ...interface{}) {
	cl.logger.log(LevelError, cl.category, msg, err, fields...)
}

// Enabled reports whether level is logged for this category.
func (cl *CategoryLogger) Enabled(level Level) bool {
	return cl.logger.Enabled(cl.category, level)
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
)

// Default returns the default logger instance.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(DefaultConfig())
		}
	})
	return defaultLogger
}

// SetDefault sets the default logger instance.
func SetDefault(l *Logger) {
	defaultLoggerOnce.Do(func() {})
	defaultLogger = l
}
