package logger

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the zap level used across the module.
type Level = zapcore.Level

const (
	LevelDebug   = zapcore.DebugLevel
	LevelInfo    = zapcore.InfoLevel
	LevelWarning = zapcore.WarnLevel
	LevelError   = zapcore.ErrorLevel
	LevelFatal   = zapcore.FatalLevel
)

// Error counters for the health endpoint (incremented regardless of sampling)
var (
	TotalErrors          atomic.Int64
	TotalWarnings        atomic.Int64
	Total5xxErrors       atomic.Int64
	Total4xxErrors       atomic.Int64
	Total400Errors       atomic.Int64
	Total404Errors       atomic.Int64
	TotalRuleFailures    atomic.Int64
	TotalResolutions     atomic.Int64
	TotalUnmatchedResult atomic.Int64
)

// Logger wraps zap.SugaredLogger and adds sampling of warn/error output.
type Logger struct {
	*zap.SugaredLogger
	level      zap.AtomicLevel
	sampleRate *atomic.Int32
}

// Config controls logger construction.
type Config struct {
	Level string
	// ErrorSampleRate logs 1 out of every N warnings/errors. Values <= 1 log everything.
	ErrorSampleRate int
}

// L is the global logger for scripts and package-level helpers.
// Components should receive a *Logger instead.
var L *Logger

func init() {
	cfg := Config{Level: os.Getenv("LOG_LEVEL"), ErrorSampleRate: 1}
	if sampleStr := os.Getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			cfg.ErrorSampleRate = rate
		}
	}

	l, err := New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger, using nop: %v\n", err)
		l = NewNop()
	}
	L = l
}

// New builds a JSON production logger.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = LevelInfo
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	config.Sampling = nil
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	l := &Logger{
		SugaredLogger: zapLogger.Sugar(),
		level:         atomicLevel,
		sampleRate:    new(atomic.Int32),
	}
	l.SetErrorSampleRate(cfg.ErrorSampleRate)
	return l, nil
}

// NewNop returns a logger that discards everything. Counters still move.
func NewNop() *Logger {
	l := &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		level:         zap.NewAtomicLevelAt(LevelInfo),
		sampleRate:    new(atomic.Int32),
	}
	l.sampleRate.Store(1)
	return l
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

// GetLevel returns the current minimum log level
func (l *Logger) GetLevel() Level {
	return l.level.Level()
}

// SetErrorSampleRate changes the 1/N sampling of warn and error output.
func (l *Logger) SetErrorSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	l.sampleRate.Store(int32(rate))
}

// ParseLevel converts a string level name to a Level. TRACE is treated as DEBUG.
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE", "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func (l *Logger) shouldSample() bool {
	rate := l.sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Warnw logs a warning with key/value pairs WITH SAMPLING.
// The counter is always incremented.
func (l *Logger) Warnw(msg string, keysAndValues ...any) {
	TotalWarnings.Add(1)
	if l.shouldSample() {
		l.SugaredLogger.Warnw(msg, keysAndValues...)
	}
}

// Errorw logs an error with key/value pairs WITH SAMPLING.
// The counter is always incremented.
func (l *Logger) Errorw(msg string, keysAndValues ...any) {
	TotalErrors.Add(1)
	if l.shouldSample() {
		l.SugaredLogger.Errorw(msg, keysAndValues...)
	}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(keysAndValues...),
		level:         l.level,
		sampleRate:    l.sampleRate,
	}
}

// Sync flushes buffered output. Errors from syncing stdout are ignored.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// ============================================================================
// Package-level helpers on the global logger
// ============================================================================

func Debug(msg string, args ...any) { L.Debugw(msg, args...) }

func Info(msg string, args ...any) { L.Infow(msg, args...) }

func Warn(msg string, args ...any) { L.Warnw(msg, args...) }

func Error(msg string, args ...any) { L.Errorw(msg, args...) }

// Fatal logs and exits (never sampled)
func Fatal(msg string, args ...any) {
	L.Fatalw(msg, args...)
}

// ============================================================================
// HTTP-Specific Counters
// ============================================================================

// ErrorHttp5xx increments the 5xx counters
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx increments the 4xx counters
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 400:
		Total400Errors.Add(1)
	case 404:
		Total404Errors.Add(1)
	}
}

// Counters returns a snapshot of the counters for the health endpoint.
func Counters() map[string]int64 {
	return map[string]int64{
		"errors":            TotalErrors.Load(),
		"warnings":          TotalWarnings.Load(),
		"http5xx":           Total5xxErrors.Load(),
		"http4xx":           Total4xxErrors.Load(),
		"http400":           Total400Errors.Load(),
		"http404":           Total404Errors.Load(),
		"ruleFailures":      TotalRuleFailures.Load(),
		"resolutions":       TotalResolutions.Load(),
		"unmatchedResolves": TotalUnmatchedResult.Load(),
	}
}
