package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents logging verbosity
type Level int

const (
	ErrorLevel Level = iota
	InfoLevel
	DebugLevel
	TraceLevel
)

var levelNames = map[Level]string{
	ErrorLevel: "ERROR",
	InfoLevel:  "INFO",
	DebugLevel: "DEBUG",
	TraceLevel: "TRACE",
}

// Logger provides leveled logging with an optional log file. Warnings raised
// through WarnOnce are emitted once per distinct slug.
type Logger struct {
	level      Level
	logDir     string
	logFile    *os.File
	mu         sync.Mutex
	stdout     io.Writer
	stderr     io.Writer
	fileLogger *log.Logger
	warned     map[string]struct{}
}

// New creates a new logger writing to the process's stdout and stderr.
func New(level Level, logDir string) (*Logger, error) {
	return NewWithWriters(level, logDir, os.Stdout, os.Stderr)
}

// NewWithWriters creates a logger writing to the given streams.
func NewWithWriters(level Level, logDir string, stdout, stderr io.Writer) (*Logger, error) {
	l := &Logger{
		level:  level,
		logDir: logDir,
		stdout: stdout,
		stderr: stderr,
		warned: map[string]struct{}{},
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("srccov-%s.log", time.Now().Format("20060102-150405")))
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.logFile = f
		l.fileLogger = log.New(f, "", log.LstdFlags)
	}

	return l, nil
}

// Discard returns a logger that drops everything below ErrorLevel and
// writes nothing anywhere.
func Discard() *Logger {
	l, _ := NewWithWriters(ErrorLevel, "", io.Discard, io.Discard)
	return l
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	if l.fileLogger != nil {
		l.fileLogger.Println(fmt.Sprintf("[%s] %s: %s", timestamp, levelNames[level], msg))
	}

	if level == ErrorLevel {
		fmt.Fprintf(l.stderr, "❌ %s\n", msg)
	} else {
		fmt.Fprintf(l.stdout, "%s\n", msg)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(TraceLevel, format, args...)
}

// Progress logs a progress message (always shown)
func (l *Logger) Progress(format string, args ...interface{}) {
	l.tagged("PROGRESS", l.stdout, "⏳ ", format, args...)
}

// Success logs a success message (always shown)
func (l *Logger) Success(format string, args ...interface{}) {
	l.tagged("SUCCESS", l.stdout, "✅ ", format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.tagged("WARNING", l.stderr, "⚠️  ", format, args...)
}

// WarnOnce emits "Coverage warning: <msg> (<slug>)" the first time slug is
// seen and drops later warnings with the same slug. It reports whether the
// warning was emitted.
func (l *Logger) WarnOnce(slug, format string, args ...interface{}) bool {
	l.mu.Lock()
	if _, seen := l.warned[slug]; seen {
		l.mu.Unlock()
		return false
	}
	l.warned[slug] = struct{}{}
	l.mu.Unlock()

	l.tagged("WARNING", l.stderr, "", "Coverage warning: %s (%s)", fmt.Sprintf(format, args...), slug)
	return true
}

func (l *Logger) tagged(tag string, w io.Writer, prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.fileLogger != nil {
		l.fileLogger.Printf("[%s] %s", tag, msg)
	}
	fmt.Fprintf(w, "%s%s\n", prefix, msg)
}

// ParseLevel parses a string into a log level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "error":
		return ErrorLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s (valid: error, info, debug, trace)", s)
	}
}
