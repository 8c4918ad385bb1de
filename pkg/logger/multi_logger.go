package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryQueue    LogCategory = "queue"    // Queue lifecycle events (JSON)
	CategoryPool     LogCategory = "pool"     // Connection pool events (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
	CategoryDownload LogCategory = "download" // Raw downloader output (text)
)

// Categories lists every category that has a daily log file
var Categories = []LogCategory{CategoryQueue, CategoryPool, CategoryError, CategoryDownload}

// ValidCategory reports whether c is a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// MultiLogger writes structured events to one JSON file per category and
// day. Raw downloader output goes to the download category file and is
// written by the downloaders directly.
type MultiLogger struct {
	config MultiLoggerConfig
	level  zapcore.Level

	mu          sync.RWMutex
	loggers     map[LogCategory]*zap.Logger
	files       map[LogCategory]*os.File
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// structured categories and the minimum level written to each
var structuredLevels = map[LogCategory]zapcore.Level{
	CategoryQueue: zapcore.DebugLevel,
	CategoryPool:  zapcore.DebugLevel,
	CategoryError: zapcore.ErrorLevel,
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config: config,
		level:  level,
		now:    time.Now,
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if err := ml.openLocked(); err != nil {
		ml.closeLocked()
		return nil, err
	}
	return ml, nil
}

// openLocked (re)creates one logger per structured category for today
func (ml *MultiLogger) openLocked() error {
	ml.loggers = make(map[LogCategory]*zap.Logger, len(structuredLevels))
	ml.files = make(map[LogCategory]*os.File, len(structuredLevels))
	ml.currentDate = ml.now().Format("20060102")

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	for category, minLevel := range structuredLevels {
		path := filepath.Join(ml.config.LogsDir, fmt.Sprintf("%s-%s.log", category, ml.currentDate))
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}

		level := ml.level
		if minLevel > level {
			level = minLevel
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
		ml.loggers[category] = zap.New(core)
		ml.files[category] = file
	}
	return nil
}

func (ml *MultiLogger) closeLocked() error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, f := range ml.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	ml.loggers = nil
	ml.files = nil
	return lastErr
}

// rotate reopens the category files when the day changed
func (ml *MultiLogger) rotate() {
	today := ml.now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if today == current {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.currentDate == today {
		return
	}
	ml.closeLocked()
	if err := ml.openLocked(); err != nil {
		fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
	}
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	if logger, ok := ml.loggers[CategoryError]; ok {
		return logger
	}
	return zap.NewNop()
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Pool returns the connection pool logger (JSON format)
func (ml *MultiLogger) Pool() *zap.Logger {
	return ml.GetLogger(CategoryPool)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	if ml == nil {
		return
	}
	ml.Error().Error(msg, fields...)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	if ml == nil {
		return
	}
	ml.Queue().Info(event, fields...)
}

// LogPoolEvent logs a connection pool event with structured data
func (ml *MultiLogger) LogPoolEvent(event string, fields ...zap.Field) {
	if ml == nil {
		return
	}
	ml.Pool().Info(event, fields...)
}

// DownloadLogPath returns today's raw download log file
func (ml *MultiLogger) DownloadLogPath() string {
	return filepath.Join(ml.config.LogsDir, fmt.Sprintf("%s-%s.log", CategoryDownload, ml.now().Format("20060102")))
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.closeLocked()
}
