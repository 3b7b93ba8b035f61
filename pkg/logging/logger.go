// Package logging implements nsappd's structured leveled logger.
// Every subsystem that logs (scheduler, jobqueue, the config watcher,
// execil, fastpath) takes a Logger through its own narrow local
// interface rather than importing this package's concrete type
// directly. runServer derives a per-component Logger via WithComponent
// for the scheduler, the job queue and the fast path, so a shared log
// stream can still be told apart by those subsystems.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// LogLevel orders the four severities nsappd logs at.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the level's wire/log-line spelling.
func (l LogLevel) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func levelFromString(s string) LogLevel {
	switch s {
	case "DEBUG":
		return DebugLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// ParseLogLevel parses a config or command-line level name into a
// LogLevel. An empty string means "info", matching DefaultConfig.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("logging: invalid level %q", level)
	}
}

// LogFormat selects how a LogEntry is rendered.
type LogFormat int

const (
	TextFormat LogFormat = iota
	JSONFormat
)

// ParseLogFormat parses a config spelling ("text", "json") into a
// LogFormat. An empty string means "text".
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("logging: invalid format %q", format)
	}
}

var levelColor = map[LogLevel]*color.Color{
	DebugLevel: color.New(color.FgCyan),
	InfoLevel:  color.New(color.FgGreen),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed, color.Bold),
}

// LogEntry is one rendered log line: the shape JSONFormat emits
// directly, and the fields TextFormat flattens into its
// "timestamp [LEVEL] (caller) message [k=v ...]" layout.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// Logger is nsappd's structured logger.
type Logger struct {
	mu         sync.RWMutex
	level      LogLevel
	format     LogFormat
	output     io.Writer
	showCaller bool
	component  string
	colorize   bool
}

// Config configures a Logger; DefaultConfig gives "info level, text
// format, stdout, no component." The zero Config's Level is DebugLevel.
type Config struct {
	Level      LogLevel
	Format     LogFormat
	Output     io.Writer
	ShowCaller bool
	Component  string
}

// DefaultConfig returns nsappd's out-of-the-box logger configuration.
func DefaultConfig() *Config {
	return &Config{Level: InfoLevel, Format: TextFormat, Output: os.Stdout}
}

// NewLogger builds a Logger from config (DefaultConfig() if nil).
// Color is enabled automatically for TextFormat writing to a tty, and
// never for JSONFormat, which targets a log collector, not a terminal.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:      config.Level,
		format:     config.Format,
		output:     output,
		showCaller: config.ShowCaller,
		component:  config.Component,
		colorize:   config.Format == TextFormat && isTerminalWriter(output),
	}
}

// isTerminalWriter reports whether w is a terminal fatih/color would
// colorize; anything other than an *os.File attached to a tty (a file,
// a buffer, a pipe to another process) gets plain text.
func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WithComponent returns a derived logger tagging every entry with
// component, so e.g. jobqueue's and scheduler's output can be told
// apart in a shared log stream without either package importing the
// other or this one.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:      l.level,
		format:     l.format,
		output:     l.output,
		showCaller: l.showCaller,
		colorize:   l.colorize,
		component:  component,
	}
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects where this logger writes, re-evaluating whether
// color should be enabled for the new destination.
func (l *Logger) SetOutput(output io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
	l.colorize = l.format == TextFormat && isTerminalWriter(output)
}

// IsEnabled reports whether level would actually be written.
func (l *Logger) IsEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

// log renders and writes one entry; fields may be nil.
func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.IsEnabled(level) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entry := LogEntry{Timestamp: time.Now(), Level: level.String(), Message: message, Fields: fields}
	if l.component != "" {
		if entry.Fields == nil {
			entry.Fields = make(map[string]interface{}, 1)
		}
		entry.Fields["component"] = l.component
	}
	if l.showCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	var rendered string
	switch l.format {
	case JSONFormat:
		data, _ := json.Marshal(entry)
		rendered = string(data) + "\n"
	default:
		rendered = l.formatText(entry)
	}
	l.output.Write([]byte(rendered))
}

// formatText renders entry as "timestamp [LEVEL] (caller) message
// [k=v ...]", sorting field keys so a multi-field line is stable
// across calls (Go's map iteration order isn't).
func (l *Logger) formatText(entry LogEntry) string {
	levelTag := "[" + entry.Level + "]"
	if l.colorize {
		if c, ok := levelColor[levelFromString(entry.Level)]; ok {
			levelTag = c.Sprint(levelTag)
		}
	}

	parts := make([]string, 0, 4)
	parts = append(parts, entry.Timestamp.Format("2006-01-02 15:04:05"), levelTag)
	if entry.Caller != "" {
		parts = append(parts, "("+entry.Caller+")")
	}
	parts = append(parts, entry.Message)
	line := strings.Join(parts, " ")

	if len(entry.Fields) > 0 {
		fieldParts := make([]string, 0, len(entry.Fields))
		for k, v := range entry.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(fieldParts)
		line += " [" + strings.Join(fieldParts, " ") + "]"
	}
	return line + "\n"
}

// Debug, Info, Warn, and Error log message with an optional fields
// map (only the first argument, if any, is used — the variadic spot
// just makes fields optional at call sites that don't need them).
func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.logOptionalFields(DebugLevel, message, fields)
}

func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.logOptionalFields(InfoLevel, message, fields)
}

func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.logOptionalFields(WarnLevel, message, fields)
}

func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.logOptionalFields(ErrorLevel, message, fields)
}

func (l *Logger) logOptionalFields(level LogLevel, message string, fields []map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(level, message, f)
}

// Debugf, Infof, Warnf, and Errorf log a fmt.Sprintf-formatted
// message with no fields. These are the methods every narrow Logger
// interface in this module (jobqueue, scheduler, execil, config,
// fastpath) actually requires.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// WithField returns a derived logger that attaches key=value to every
// entry it writes.
func (l *Logger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: map[string]interface{}{key: value}}
}

// WithFields returns a derived logger that attaches a copy of fields
// to every entry it writes.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	f := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &FieldLogger{logger: l, fields: f}
}

// FieldLogger is a Logger bound to a fixed set of fields, attached to
// every entry it writes.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(message string) { fl.logger.log(DebugLevel, message, fl.fields) }
func (fl *FieldLogger) Info(message string)  { fl.logger.log(InfoLevel, message, fl.fields) }
func (fl *FieldLogger) Warn(message string)  { fl.logger.log(WarnLevel, message, fl.fields) }
func (fl *FieldLogger) Error(message string) { fl.logger.log(ErrorLevel, message, fl.fields) }

func (fl *FieldLogger) Debugf(format string, args ...interface{}) {
	fl.logger.log(DebugLevel, fmt.Sprintf(format, args...), fl.fields)
}

func (fl *FieldLogger) Infof(format string, args ...interface{}) {
	fl.logger.log(InfoLevel, fmt.Sprintf(format, args...), fl.fields)
}

func (fl *FieldLogger) Warnf(format string, args ...interface{}) {
	fl.logger.log(WarnLevel, fmt.Sprintf(format, args...), fl.fields)
}

func (fl *FieldLogger) Errorf(format string, args ...interface{}) {
	fl.logger.log(ErrorLevel, fmt.Sprintf(format, args...), fl.fields)
}

// WithField returns a derived FieldLogger with an additional key=value
// merged into the existing field set.
func (fl *FieldLogger) WithField(key string, value interface{}) *FieldLogger {
	fields := make(map[string]interface{}, len(fl.fields)+1)
	for k, v := range fl.fields {
		fields[k] = v
	}
	fields[key] = value
	return &FieldLogger{logger: fl.logger, fields: fields}
}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

// InitGlobalLogger replaces the process-wide default logger.
func InitGlobalLogger(config *Config) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = NewLogger(config)
}

// GetGlobalLogger returns the process-wide default logger, lazily
// building one from DefaultConfig on first use. Every subsystem
// constructor in this module (jobqueue.New, scheduler.New,
// config.Watch, execil.Run/Wait, fastpath.New) falls back to this when
// no Logger is supplied.
func GetGlobalLogger() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(DefaultConfig())
	}
	return defaultLogger
}

// CreateFileOutput opens filename for append, creating its directory
// if needed, for use as a Logger's Output.
func CreateFileOutput(filename string) (io.Writer, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return file, nil
}

// CreateCombinedOutput returns a writer that duplicates every entry to
// both stdout and filename, for a foreground run that should still
// leave a file behind — the shape runServer uses when global.logdir
// is configured.
func CreateCombinedOutput(filename string) (io.Writer, error) {
	fileWriter, err := CreateFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(os.Stdout, fileWriter), nil
}
