package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerAdapter hands out per-category loggers. With a MultiLogger attached,
// each category logger writes to the general output and to its daily file.
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
}

// NewLoggerAdapter creates a new logger adapter
func NewLoggerAdapter(general *zap.Logger, multiLogger *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{
		multiLogger:  multiLogger,
		singleLogger: general,
	}
}

// NewSingleLoggerAdapter creates an adapter without category files
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return NewLoggerAdapter(logger, nil)
}

func (la *LoggerAdapter) category(category LogCategory) *zap.Logger {
	if la.multiLogger == nil {
		return la.singleLogger.With(zap.String("category", string(category)))
	}
	file := &categoryCore{ml: la.multiLogger, category: category}
	return la.singleLogger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, file)
	}))
}

// Resolve returns the resolution lifecycle logger
func (la *LoggerAdapter) Resolve() *zap.Logger {
	return la.category(CategoryResolve)
}

// Delivery returns the delivery logger
func (la *LoggerAdapter) Delivery() *zap.Logger {
	return la.category(CategoryDelivery)
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	return la.category(CategoryError)
}

// General returns the general logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.singleLogger
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	err := la.singleLogger.Sync()
	if la.multiLogger != nil {
		if mErr := la.multiLogger.Sync(); mErr != nil {
			err = mErr
		}
	}
	return err
}

// GetMultiLogger returns the underlying multi-logger (if available)
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}

// categoryCore forwards entries to the MultiLogger's current file for a
// category, so day rotation applies to loggers built before the rotation.
type categoryCore struct {
	ml       *MultiLogger
	category LogCategory
	fields   []zapcore.Field
}

func (c *categoryCore) current() zapcore.Core {
	return c.ml.GetLogger(c.category).Core()
}

func (c *categoryCore) Enabled(level zapcore.Level) bool {
	return c.current().Enabled(level)
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &categoryCore{ml: c.ml, category: c.category, fields: merged}
}

func (c *categoryCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *categoryCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	core := c.current()
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(entry, fields)
}

func (c *categoryCore) Sync() error {
	return c.current().Sync()
}
