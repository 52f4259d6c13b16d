package scalpel

import (
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LevelOff silences the logger.
const LevelOff = log.Level(math.MaxInt32)

var (
	globalLogger     *log.Logger
	globalLoggerOnce sync.Once
	globalLoggerMu   sync.RWMutex
)

func initGlobalLogger() {
	globalLoggerOnce.Do(func() {
		config := GetGlobalConfig()
		globalLoggerMu.Lock()
		globalLogger = NewLogger(os.Stderr, config.LogLevel)
		globalLoggerMu.Unlock()
	})
}

// NewLogger builds a timestamped logger writing to w.
func NewLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = io.Discard
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           parseLogLevel(level),
		Prefix:          "scalpel",
	})
}

func parseLogLevel(levelStr string) log.Level {
	levelStr = strings.ToLower(strings.TrimSpace(levelStr))
	if levelStr == "off" {
		return LevelOff
	}
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// SetLogger replaces the package logger.
func SetLogger(logger *log.Logger) {
	initGlobalLogger()
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = logger
}

// GetLogger returns the package logger.
func GetLogger() *log.Logger {
	initGlobalLogger()
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// WithFields returns a child logger carrying the given key/value pairs.
func WithFields(keyvals ...interface{}) *log.Logger {
	return GetLogger().With(keyvals...)
}

// UpdateLoggerFromConfig updates the global logger based on the current global configuration
func UpdateLoggerFromConfig() {
	config := GetGlobalConfig()
	GetLogger().SetLevel(parseLogLevel(config.LogLevel))
}
