package mail

import "context"

// Message is a transport-agnostic outbound email. Both channels (direct SMTP
// and the HTTP relay) accept the same shape.
type Message struct {
	From     string
	FromName string
	To       string
	ReplyTo  string
	Subject  string
	Text     string
	HTML     string
}

type Result struct {
	Method    string `json:"method"`
	MessageID string `json:"messageId"`
}

// Sender delivers a message. Handlers and the OTP dispatcher depend on this
// interface only, so any notification caller can reuse the fallback chain.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// Channel is a concrete transport inside a fallback chain.
type Channel interface {
	Sender
	Name() string
}

const (
	MethodSMTP  = "smtp"
	MethodRelay = "relay-api"
)
