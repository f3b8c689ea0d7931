// Package logging wraps zap.Logger with the structured fields and fluent
// With* builders this engine's components expect, adapted from
// common/libraries/go/iaros-core/logging.go in the teacher repo.
package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with service identity fields.
type Logger struct {
	*zap.Logger
	serviceName string
	environment string
}

// Config configures a new Logger.
type Config struct {
	Level            string
	ServiceName      string
	Environment      string
	OutputPath       string
	Format           string // "json" or "console"
	EnableCaller     bool
	EnableStacktrace bool
}

// RequestIDKey is the context key request-scoped loggers look up.
const RequestIDKey = "request_id"

// New builds a Logger for the given service name, applying environment
// defaults the way order_service/main.go's initLogger does.
func New(serviceName string, opts ...Config) *Logger {
	cfg := Config{
		Level:            "info",
		ServiceName:      serviceName,
		Environment:      getEnv("ENVIRONMENT", "development"),
		OutputPath:       "stdout",
		Format:           "json",
		EnableCaller:     true,
		EnableStacktrace: true,
	}
	if len(opts) > 0 {
		o := opts[0]
		if o.Level != "" {
			cfg.Level = o.Level
		}
		if o.ServiceName != "" {
			cfg.ServiceName = o.ServiceName
		}
		if o.Environment != "" {
			cfg.Environment = o.Environment
		}
		if o.OutputPath != "" {
			cfg.OutputPath = o.OutputPath
		}
		if o.Format != "" {
			cfg.Format = o.Format
		}
		cfg.EnableCaller = o.EnableCaller
		cfg.EnableStacktrace = o.EnableStacktrace
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	if cfg.OutputPath == "" || cfg.OutputPath == "stdout" {
		writeSyncer = zapcore.AddSync(os.Stdout)
	} else if file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
		writeSyncer = zapcore.AddSync(file)
	} else {
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	var zapOpts []zap.Option
	if cfg.EnableCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	base := zap.New(core, zapOpts...).With(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	)

	return &Logger{Logger: base, serviceName: cfg.ServiceName, environment: cfg.Environment}
}

func (l *Logger) clone(base *zap.Logger) *Logger {
	return &Logger{Logger: base, serviceName: l.serviceName, environment: l.environment}
}

// WithRequestID attaches a request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.clone(l.Logger.With(zap.String("request_id", requestID)))
}

// WithContext pulls a request ID out of ctx, if present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return l.WithRequestID(requestID)
	}
	return l
}

// WithShipment attaches a shipment ID field.
func (l *Logger) WithShipment(shipmentID string) *Logger {
	return l.clone(l.Logger.With(zap.String("shipment_id", shipmentID)))
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	return l.clone(l.Logger.With(zap.Error(err)))
}

// CacheLogger logs a cache get/set outcome.
func (l *Logger) CacheLogger(operation, key string, hit bool, duration time.Duration) {
	l.Debug("cache operation",
		zap.String("operation", operation),
		zap.String("key", key),
		zap.Bool("hit", hit),
		zap.Duration("duration", duration),
	)
}

// ExternalServiceLogger logs a rate-provider HTTP call outcome.
func (l *Logger) ExternalServiceLogger(provider, method, endpoint string, duration time.Duration, statusCode int, success bool) {
	level := l.Info
	if !success {
		level = l.Error
	}
	level("external provider call",
		zap.String("provider", provider),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Duration("duration", duration),
		zap.Int("status_code", statusCode),
		zap.Bool("success", success),
	)
}

// DatabaseQueryLogger logs a persistence-layer query outcome.
func (l *Logger) DatabaseQueryLogger(query string, duration time.Duration, rowsAffected int64) {
	l.Debug("database query",
		zap.String("query", query),
		zap.Duration("duration", duration),
		zap.Int64("rows_affected", rowsAffected),
	)
}

// CalculationEventLogger logs a completed or failed landed-cost calculation.
func (l *Logger) CalculationEventLogger(shipmentID, status string, warnings int) {
	l.Info("calculation event",
		zap.String("shipment_id", shipmentID),
		zap.String("status", status),
		zap.Int("warning_count", warnings),
		zap.Time("event_time", time.Now()),
	)
}

// CircuitBreakerLogger logs a circuit-breaker state transition.
func (l *Logger) CircuitBreakerLogger(name, from, to string) {
	l.Warn("circuit breaker state change",
		zap.String("breaker", name),
		zap.String("from", from),
		zap.String("to", to),
	)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

var global *Logger

// InitGlobal sets the process-wide convenience logger.
func InitGlobal(serviceName string, opts ...Config) {
	global = New(serviceName, opts...)
}

// Global returns the process-wide convenience logger, building a default one
// on first use if InitGlobal was never called.
func Global() *Logger {
	if global == nil {
		global = New("tariffengine")
	}
	return global
}
