package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTags = map[Level]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

var (
	globalLogger *log.Logger
	logFile      *os.File
	console      *log.Logger
	consoleLevel = LevelWarn
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)

	return nil
}

// InitWriter routes the file log to w instead of a file. Used by tests.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// SetConsole mirrors messages at or above min to w. A nil writer disables
// the mirror.
func SetConsole(w io.Writer, min Level) {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		console = nil
		return
	}
	console = log.New(w, "", 0)
	consoleLevel = min
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

func output(level Level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	tag := levelTags[level]
	if globalLogger != nil {
		globalLogger.Printf(tag+format, v...)
	}
	if console != nil && level >= consoleLevel {
		console.Printf(tag+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	output(LevelInfo, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	output(LevelDebug, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	output(LevelError, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	output(LevelWarn, format, v...)
}

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
