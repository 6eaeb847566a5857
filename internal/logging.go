package internal

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

var (
	baseMu sync.RWMutex
	base   = defaultBaseLogger()
)

func defaultBaseLogger() *zap.Logger {
	logger, err := buildZapLogger(LogConfig{})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func buildZapLogger(cfg LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	if cfg.Encoding != "" {
		zcfg.Encoding = strings.ToLower(cfg.Encoding)
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Sampling = nil
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// SetupLogging replaces the base logger used by NewLogger.
func SetupLogging(cfg LogConfig) error {
	logger, err := buildZapLogger(cfg)
	if err != nil {
		return err
	}
	baseMu.Lock()
	previous := base
	base = logger
	baseMu.Unlock()
	_ = previous.Sync()
	return nil
}

// NewLogger returns a logger named "mirrorhooks/<component>".
func NewLogger(component string) *zap.SugaredLogger {
	name := "mirrorhooks"
	if component != "" {
		name = name + "/" + component
	}
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base.Named(name).Sugar()
}

// WithRequestID tags every entry of logger with the inbound request id.
func WithRequestID(logger *zap.SugaredLogger, requestID string) *zap.SugaredLogger {
	if logger == nil {
		logger = NewLogger("")
	}
	if requestID == "" {
		return logger
	}
	return logger.With("request_id", requestID)
}
