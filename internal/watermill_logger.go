package internal

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

type zapLoggerAdapter struct {
	logger *zap.SugaredLogger
}

// NewWatermillLogger adapts a zap logger to watermill's LoggerAdapter.
func NewWatermillLogger(logger *zap.SugaredLogger) watermill.LoggerAdapter {
	if logger == nil {
		logger = NewLogger("broker")
	}
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Errorw(msg, append(keyValues(fields), "error", err)...)
}

func (a *zapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Infow(msg, keyValues(fields)...)
}

func (a *zapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, keyValues(fields)...)
}

func (a *zapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, keyValues(fields)...)
}

func (a *zapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapLoggerAdapter{logger: a.logger.With(keyValues(fields)...)}
}

func keyValues(fields watermill.LogFields) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for key, value := range fields {
		out = append(out, key, value)
	}
	return out
}
