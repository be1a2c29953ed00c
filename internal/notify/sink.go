// Package notify delivers text messages to phone numbers.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink accepts a phone number and a message. Implementations should honour
// ctx cancellation.
type Sink interface {
	Send(ctx context.Context, phone, message string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, phone, message string) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, phone, message string) error {
	return f(ctx, phone, message)
}

// LogSink records messages in the log instead of delivering them.
type LogSink struct {
	logger *zap.Logger
	sender string
}

// NewLogSink returns a sink that logs each message as sent from sender.
func NewLogSink(logger *zap.Logger, sender string) *LogSink {
	return &LogSink{logger: logger, sender: sender}
}

// Send logs the message.
func (s *LogSink) Send(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("notification sent",
		zap.String("from", s.sender),
		zap.String("to", phone),
		zap.String("body", message))
	return nil
}
