package mail

import (
	"context"

	"go.uber.org/zap"

	usecasemail "github.com/fastygo/ocxers/usecase/mail"
)

var _ usecasemail.Sender = (*Log)(nil)

// Log writes messages to the logger instead of delivering them.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, msg usecasemail.Message) error {
	l.logger.Info("mail",
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.Strings("cc", msg.Cc),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
