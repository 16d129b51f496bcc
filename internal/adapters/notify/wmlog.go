package notify

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/league/pkg/logger"
)

// wmLogger adapts logger.Logger to watermill.LoggerAdapter.
type wmLogger struct {
	l logger.Logger
}

func fields(f watermill.LogFields) []logger.Field {
	out := make([]logger.Field, 0, len(f))
	for k, v := range f {
		out = append(out, logger.Any(k, v))
	}
	return out
}

func (w wmLogger) Error(msg string, err error, f watermill.LogFields) {
	w.l.Error(context.Background(), msg, append(fields(f), logger.Error(err))...)
}

func (w wmLogger) Info(msg string, f watermill.LogFields) {
	w.l.Info(context.Background(), msg, fields(f)...)
}

func (w wmLogger) Debug(msg string, f watermill.LogFields) {
	w.l.Debug(context.Background(), msg, fields(f)...)
}

// Trace maps to debug; slog has no lower level.
func (w wmLogger) Trace(msg string, f watermill.LogFields) {
	w.l.Debug(context.Background(), msg, fields(f)...)
}

func (w wmLogger) With(f watermill.LogFields) watermill.LoggerAdapter {
	return wmLogger{l: w.l.With(fields(f)...)}
}
