package indicator

import (
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/session"
)

type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(s session.Status) {
	fields := []zap.Field{zap.String("session", s.SessionID)}
	switch s.Kind {
	case session.StatusError:
		l.logger.Warn("dictation failed", append(fields, zap.String("reason", s.Reason))...)
	case session.StatusCopied:
		l.logger.Info("transcript copied", append(fields, zap.Int("chars", s.Chars), zap.Bool("pasted", s.Pasted))...)
	default:
		l.logger.Info(s.Kind.String(), fields...)
	}
}
