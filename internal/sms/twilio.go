package sms

import (
	"context"
	"fmt"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a short text message to an E.164 number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender returns nil when credentials are absent; callers treat a
// nil sender as "SMS channel disabled".
func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioSender{client: client, from: cfg.PhoneNumber}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	// The Twilio client has no per-call context, so cancellation is honored
	// before dispatch only.
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Info("sms_sent", map[string]interface{}{
		"to":  to,
		"sid": sid,
	})

	return nil
}
