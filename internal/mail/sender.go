package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/kanucard/concierge/pkg/logger"
)

// SendError aggregates the failures of every attempted channel so operators
// can tell a broken SMTP host apart from a misconfigured relay.
type SendError struct {
	Attempts []string
}

func (e *SendError) Error() string {
	return "failed to send email. attempts: " + strings.Join(e.Attempts, "; ")
}

// FallbackSender tries the primary channel first and falls back to the
// secondary only when one is configured. Order is fixed: the direct SMTP path
// is always preferred.
type FallbackSender struct {
	primary   Channel
	secondary Channel // nil when the fallback is disabled
}

func NewFallbackSender(primary, secondary Channel) *FallbackSender {
	return &FallbackSender{primary: primary, secondary: secondary}
}

func (f *FallbackSender) Send(ctx context.Context, msg Message) (Result, error) {
	result, primaryErr := f.primary.Send(ctx, msg)
	if primaryErr == nil {
		logger.Info("mail_sent", map[string]interface{}{
			"method":     result.Method,
			"to":         msg.To,
			"subject":    msg.Subject,
			"message_id": result.MessageID,
		})
		return result, nil
	}

	attempts := []string{fmt.Sprintf("%s: %v", f.primary.Name(), primaryErr)}

	logger.Warn("mail_primary_failed", map[string]interface{}{
		"method":           f.primary.Name(),
		"to":               msg.To,
		"subject":          msg.Subject,
		"error":            primaryErr.Error(),
		"fallback_enabled": f.secondary != nil,
	})

	if f.secondary == nil {
		return Result{}, &SendError{Attempts: attempts}
	}

	result, secondaryErr := f.secondary.Send(ctx, msg)
	if secondaryErr == nil {
		logger.Info("mail_sent_via_fallback", map[string]interface{}{
			"method":     result.Method,
			"to":         msg.To,
			"subject":    msg.Subject,
			"message_id": result.MessageID,
		})
		return result, nil
	}

	attempts = append(attempts, fmt.Sprintf("%s: %v", f.secondary.Name(), secondaryErr))

	logger.Error("mail_all_channels_failed", secondaryErr, map[string]interface{}{
		"to":       msg.To,
		"subject":  msg.Subject,
		"attempts": attempts,
	})

	return Result{}, &SendError{Attempts: attempts}
}
