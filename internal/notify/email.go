package notify

import (
	"context"

	"go.uber.org/zap"
)

// EmailSender is a placeholder transport: it records the outgoing message so
// the worker pipeline can be exercised without a mail relay.
type EmailSender struct {
	from   string
	logger *zap.Logger
}

func NewEmailSender(from string, logger *zap.Logger) *EmailSender {
	return &EmailSender{from: from, logger: logger}
}

func (s *EmailSender) Send(ctx context.Context, destination, message string) error {
	s.logger.Info("email out",
		zap.String("from", s.from),
		zap.String("to", destination),
		zap.String("message", message),
	)
	return nil
}

var _ Sink = (*EmailSender)(nil)
