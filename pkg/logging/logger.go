package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger provides structured debug logging for crxforge components.
// All component loggers of one process append to the same run-specific file
// under the log directory (default ~/.crxforge/logs).
//
// All log methods (Debugf, Infof, Warnf, Errorf) write unconditionally.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	// Global run ID shared by every component logger of this process.
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored.
	logDir string

	// initOnce ensures directory initialization happens once.
	initOnce sync.Once

	// initErr stores any error from directory initialization.
	initErr error
)

// getRunID returns or creates the run ID for this process.
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// SetDirectory overrides the log directory. Must be called before the first
// NewLogger; later calls have no effect.
func SetDirectory(dir string) {
	if dir == "" {
		return
	}
	initOnce.Do(func() {
		logDir = dir
		initErr = os.MkdirAll(dir, 0750)
	})
}

// initLogDirectory ensures the log directory exists.
func initLogDirectory() error {
	initOnce.Do(func() {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		logDir = filepath.Join(homeDir, ".crxforge", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log-dir>/<run-id>-crxforge.log.
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-crxforge.log", id))

	// Append mode: multiple components write to the same file.
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0), // timestamps are formatted by formatEntry
		logPath:   logPath,
	}, nil
}

// ForComponent returns a component logger, discarding the fallback error.
// The returned logger is always usable: when file logging is unavailable it
// writes to stderr.
func ForComponent(component string) *Logger {
	l, _ := NewLogger(component)
	return l
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails.
func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	logger.Printf("WARNING: failed to initialize file logging: %v", err)

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
}

func (l *Logger) formatEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) logf(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(l.formatEntry(level, fmt.Sprintf(format, v...)))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.logf("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.logf("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.logf("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.logf("ERROR", format, v...) }

// Writer returns an io.Writer that writes to the underlying log sink.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// RunID returns the process-wide run ID.
func (l *Logger) RunID() string { return l.runID }

// LogPath returns the path to the log file ("" in fallback mode).
func (l *Logger) LogPath() string { return l.logPath }

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
