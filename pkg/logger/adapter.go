package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Tee returns a logger that writes to base and to the category file of ml.
// With a nil ml the base logger is returned unchanged.
func Tee(base *zap.Logger, ml *MultiLogger, category LogCategory) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if ml == nil {
		return base
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &categoryCore{ml: ml, category: category})
	}))
}

// categoryCore forwards entries to the current category logger so that
// Tee loggers follow daily rotation
type categoryCore struct {
	ml       *MultiLogger
	category LogCategory
	fields   []zap.Field
}

func (c *categoryCore) target() zapcore.Core {
	return c.ml.GetLogger(c.category).Core()
}

func (c *categoryCore) Enabled(level zapcore.Level) bool {
	return c.target().Enabled(level)
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zap.Field, 0, len(c.fields)+len(fields))
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
	all := make([]zap.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return c.target().Write(entry, all)
}

func (c *categoryCore) Sync() error {
	return c.target().Sync()
}
