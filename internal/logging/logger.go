// Package logging provides a small leveled logger used throughout the
// server: one file sink that always receives everything, and a console
// sink gated by a per-logger threshold.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LogLevel определяет уровни логирования.
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a component-scoped sink: everything goes to the file, only
// messages at or above minConsoleLevel reach the console.
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
}

// NewLogger creates a logger for component, sharing one log file per
// process run (logs/server_<timestamp>.log) across all components.
func NewLogger(component string) (*Logger, error) {
	file, err := sharedLogFile()
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	prefix := fmt.Sprintf("[%s] ", component)
	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, prefix, log.LstdFlags),
		fileLogger:      log.New(file, prefix, log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
	}, nil
}

var (
	logFile     *os.File
	logFileOpen bool
)

// sharedLogFile lazily creates logs/server_<timestamp>.log once per process.
func sharedLogFile() (*os.File, error) {
	if logFileOpen {
		return logFile, nil
	}
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("создание директории logs: %w", err)
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("server_%s.log", timestamp))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	logFile = f
	logFileOpen = true
	return f, nil
}

// SetConsoleLevel changes the console threshold; file output is unaffected.
func (lg *Logger) SetConsoleLevel(level LogLevel) {
	lg.minConsoleLevel = level
}

// Close is a no-op that always returns nil: the log file is shared
// process-wide and is only closed by CloseLogger (or LoggerManager.CloseAll).
func (lg *Logger) Close() error {
	return nil // file is shared process-wide, see CloseAll
}

func (lg *Logger) log(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, args...))
	lg.fileLogger.Println(message)
	if level >= lg.minConsoleLevel {
		lg.consoleLogger.Println(message)
	}
}

func (lg *Logger) Trace(format string, args ...interface{}) { lg.log(TRACE, format, args...) }
func (lg *Logger) Debug(format string, args ...interface{}) { lg.log(DEBUG, format, args...) }
func (lg *Logger) Info(format string, args ...interface{})  { lg.log(INFO, format, args...) }
func (lg *Logger) Warn(format string, args ...interface{})  { lg.log(WARN, format, args...) }
func (lg *Logger) Error(format string, args ...interface{}) { lg.log(ERROR, format, args...) }

// CloseLogger closes the process-wide shared log file.
func CloseLogger() {
	if logFileOpen {
		logFile.Close()
		logFileOpen = false
	}
}
