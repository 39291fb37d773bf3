package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/pkg/logger"
)

// RelayHandler is the receiving side of the HTTP mail relay. It runs on a
// host with working outbound SMTP and accepts forwarded messages from app
// servers whose direct SMTP egress is blocked.
type RelayHandler struct {
	Sender mail.Sender
	APIKey string
}

func NewRelayHandler(sender mail.Sender, apiKey string) *RelayHandler {
	return &RelayHandler{Sender: sender, APIKey: apiKey}
}

type relaySendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"replyTo"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// SendEmail responds in the shape the relay client expects: a success flag
// plus either the message ID or an error string.
func (h *RelayHandler) SendEmail(c *fiber.Ctx) error {
	key := c.Get("X-Api-Key")
	if h.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.APIKey)) != 1 {
		logger.Warn("relay_auth_failed", map[string]interface{}{
			"ip": c.IP(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid API key",
		})
	}

	var req relaySendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}
	if req.To == "" || req.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "to and subject are required",
		})
	}

	result, err := h.Sender.Send(c.Context(), mail.Message{
		From:    req.From,
		To:      req.To,
		ReplyTo: req.ReplyTo,
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	})
	if err != nil {
		logger.Error("relay_send_failed", err, map[string]interface{}{
			"to": req.To,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	logger.Info("relay_sent", map[string]interface{}{
		"to":         req.To,
		"message_id": result.MessageID,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"messageId": result.MessageID,
	})
}
