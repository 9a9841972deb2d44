package notify

import (
	"go.uber.org/zap"
)

// LogNotifier emits each notice as a structured log line.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier wires a zap logger to the Notifier interface.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(n Notice) {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("severity", string(n.Severity)),
		zap.String("op", string(n.Op)),
		zap.String("message", n.Message),
	}
	if n.Severity == SeverityError {
		l.logger.Warn(n.Title, fields...)
		return
	}
	l.logger.Debug(n.Title, fields...)
}
