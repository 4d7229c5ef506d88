package service

import (
	"context"

	"orderbridge/internal/privacy"

	"github.com/sirupsen/logrus"
)

type verboseKey struct{}

// hiddenContent replaces message bodies in non-verbose logs
const hiddenContent = "[hidden]"

// WithVerboseLogging marks ctx so phone numbers and message bodies are
// logged unmasked
func WithVerboseLogging(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, verbose)
}

func IsVerboseLogging(ctx context.Context) bool {
	verbose, _ := ctx.Value(verboseKey{}).(bool)
	return verbose
}

// redactedContact returns phone and content as they may appear in logs for ctx
func redactedContact(ctx context.Context, phone, content string) (string, string) {
	if IsVerboseLogging(ctx) {
		return phone, content
	}
	if content != "" {
		content = hiddenContent
	}
	return privacy.MaskPhoneNumber(phone), content
}

// LogForwardProcessing records a forward before it is sent
func LogForwardProcessing(ctx context.Context, logger *logrus.Logger, messageID, targetOrderID int64, recipient, content string) {
	phone, body := redactedContact(ctx, recipient, content)
	logger.WithFields(logrus.Fields{
		LogFieldMessageID: messageID,
		LogFieldOrderID:   targetOrderID,
		LogFieldRecipient: phone,
		"content":         body,
	}).Info("Forwarding message")
}
