package sinks

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/progress"
)

// LogObserver emits structured logs for sync lifecycle signals. Failures log
// at warn, everything else at debug.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver wires a Zap logger to the observer interface.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

// Hydrated implements progress.Observer.
func (o *LogObserver) Hydrated(source, result string) {
	level := zap.DebugLevel
	if result != progress.ResultOK {
		level = zap.WarnLevel
	}
	o.logger.Log(level, "progress hydrate", zap.String("source", source), zap.String("result", result))
}

// Flushed implements progress.Observer.
func (o *LogObserver) Flushed(size int, result string, dur time.Duration) {
	level := zap.DebugLevel
	if result != progress.ResultOK {
		level = zap.WarnLevel
	}
	o.logger.Log(level, "progress flush",
		zap.Int("updates", size),
		zap.String("result", result),
		zap.Duration("dur", dur),
	)
}

// RetryScheduled implements progress.Observer.
func (o *LogObserver) RetryScheduled(attempt int, delay time.Duration) {
	o.logger.Info("progress flush retry scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay))
}

// PendingChanged implements progress.Observer.
func (o *LogObserver) PendingChanged(n int) {
	o.logger.Debug("progress pending changed", zap.Int("pending", n))
}
