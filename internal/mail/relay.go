package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kanucard/concierge/internal/config"
)

// RelayChannel forwards the message as JSON to the remote send API on the
// mail relay host, authenticated by a static shared key. The whole request is
// bounded by a hard cancellation; a hung relay must not hold the caller past
// the configured timeout.
type RelayChannel struct {
	cfg        config.RelayConfig
	httpClient *http.Client
}

func NewRelayChannel(cfg config.RelayConfig) *RelayChannel {
	return &RelayChannel{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (r *RelayChannel) Name() string {
	return MethodRelay
}

type relayRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	ReplyTo string `json:"replyTo,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type relayResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (r *RelayChannel) Send(ctx context.Context, msg Message) (Result, error) {
	if r.cfg.URL == "" || r.cfg.APIKey == "" {
		return Result{}, errors.New("relay API configuration missing")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(relayRequest{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return Result{}, err
	}

	url := strings.TrimSuffix(r.cfg.URL, "/") + "/api/send-email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", r.cfg.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("relay API timeout after %s", r.cfg.Timeout)
		}
		return Result{}, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	var decoded relayResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		decoded = relayResponse{}
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		reason := decoded.Error
		if reason == "" {
			reason = "unknown error"
		}
		return Result{}, fmt.Errorf("relay API request failed: %d - %s", resp.StatusCode, reason)
	}

	return Result{Method: MethodRelay, MessageID: decoded.MessageID}, nil
}
