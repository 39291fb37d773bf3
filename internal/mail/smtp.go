package mail

import (
	"context"
	"fmt"

	"github.com/kanucard/concierge/internal/config"
	gomail "github.com/wneessen/go-mail"
)

// SMTPChannel submits mail directly to the configured SMTP host. The client
// timeout covers connect, greeting and socket reads; it is tuned short so a
// dead host fails over to the relay instead of hanging the request.
type SMTPChannel struct {
	cfg config.SMTPConfig
}

func NewSMTPChannel(cfg config.SMTPConfig) *SMTPChannel {
	return &SMTPChannel{cfg: cfg}
}

func (s *SMTPChannel) Name() string {
	return MethodSMTP
}

func (s *SMTPChannel) Send(ctx context.Context, msg Message) (Result, error) {
	m := gomail.NewMsg()

	from := msg.From
	if from == "" {
		from = s.cfg.From
	}
	fromName := msg.FromName
	if fromName == "" {
		fromName = s.cfg.FromName
	}

	if err := m.FromFormat(fromName, from); err != nil {
		return Result{}, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return Result{}, fmt.Errorf("invalid recipient address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return Result{}, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.User),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("smtp client setup failed: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return Result{}, fmt.Errorf("smtp send failed: %w", err)
	}

	return Result{Method: MethodSMTP, MessageID: m.GetMessageID()}, nil
}
