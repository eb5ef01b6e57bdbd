// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"riskgate/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "riskgate", "logs", "riskgate.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel switches the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithIntent adds intent identifiers to the logger context.
func WithIntent(logger zerolog.Logger, intentID, symbol string) zerolog.Logger {
	return logger.With().Str("intent_id", intentID).Str("symbol", symbol).Logger()
}

// WithRule adds a rule identifier to the logger context.
func WithRule(logger zerolog.Logger, ruleID string) zerolog.Logger {
	return logger.With().Str("rule", ruleID).Logger()
}

// LogDenial logs a risk denial with full context. Denials are logged
// exactly once, synchronously, at the point the decision is made.
func LogDenial(logger zerolog.Logger, intent models.OrderIntent, decision models.RiskDecision) {
	logger.Warn().
		Str("event", "risk_denial").
		Str("intent_id", intent.ID).
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Int("quantity", intent.Quantity).
		Float64("price", intent.Price).
		Float64("notional", intent.Notional).
		Strs("reject_reason_codes", decision.ReasonCodes).
		Str("message", decision.Message).
		Msg("Trade denied")
}

// LogAllowance logs an allowed decision and its shadow handoff id.
func LogAllowance(logger zerolog.Logger, intent models.OrderIntent, shadowID string) {
	logger.Info().
		Str("event", "risk_allowance").
		Str("intent_id", intent.ID).
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Int("quantity", intent.Quantity).
		Str("shadow_id", shadowID).
		Msg("Trade allowed")
}

// LogHardError logs a hard (integrity or store) error before it is
// propagated to the caller.
func LogHardError(logger zerolog.Logger, op string, err error) {
	logger.Error().
		Str("event", "hard_error").
		Str("operation", op).
		Err(err).
		Msg("Evaluation aborted")
}
