package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/internal/middleware"
	"github.com/kanucard/concierge/internal/otp"
	"github.com/kanucard/concierge/internal/services"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

type ApprovalHandler struct {
	Approvals   *services.ApprovalService
	Mailer      mail.Sender
	FrontendURL string
}

func NewApprovalHandler(db *gorm.DB, mailer mail.Sender, frontendURL string) *ApprovalHandler {
	return &ApprovalHandler{
		Approvals:   services.NewApprovalService(db),
		Mailer:      mailer,
		FrontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

type CreateApprovalRequest struct {
	CustomerName string               `json:"customerName"`
	Email        string               `json:"email"`
	Cards        []services.CardInput `json:"cards"`
}

// Create registers a buyout approval request and emails the customer the
// approval link. Operator-only, behind basic auth.
func (h *ApprovalHandler) Create(c *fiber.Ctx) error {
	var req CreateApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.CustomerName == "" || req.Email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "customerName and email are required")
	}
	if len(req.Cards) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "at least one card is required")
	}

	request, err := h.Approvals.Create(c.Context(), req.CustomerName, req.Email, req.Cards)
	if err != nil {
		logger.Error("approval_create_failed", err, map[string]interface{}{
			"email": req.Email,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create approval request")
	}

	approvalURL := h.FrontendURL + "/approval/" + request.Key
	rows := make([]mail.ApprovalCardRow, len(request.Cards))
	for i, card := range request.Cards {
		rows[i] = mail.ApprovalCardRow{
			PlayerName: card.PlayerName,
			Year:       card.Year,
			CardName:   card.CardName,
			Number:     card.Number,
			GradeLevel: card.GradeLevel,
		}
	}
	message := mail.ApprovalRequestMessage(request.Email, request.CustomerName, approvalURL, rows)
	if _, err := h.Mailer.Send(c.Context(), message); err != nil {
		// The record exists; the operator can resend from the admin screen.
		logger.Error("approval_mail_failed", err, map[string]interface{}{
			"approval_key": request.Key,
			"email":        request.Email,
		})
		return utils.Success(c, fiber.StatusCreated, fiber.Map{
			"approval":  request,
			"mailSent":  false,
			"mailError": "failed to send approval email",
		})
	}

	logger.Info("approval_created", map[string]interface{}{
		"approval_key": request.Key,
		"email":        request.Email,
		"cards":        len(request.Cards),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"approval": request,
		"mailSent": true,
	})
}

// Get returns the approval request the caller's token is scoped to.
func (h *ApprovalHandler) Get(c *fiber.Ctx) error {
	claims := middleware.GetApprovalClaims(c)
	if claims == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	key := c.Params("key")
	if key != claims.ApprovalKey {
		return utils.Error(c, fiber.StatusForbidden, "token not valid for this approval request")
	}

	request, err := h.Approvals.FindByKey(c.Context(), key)
	if errors.Is(err, otp.ErrApprovalNotFound) {
		return utils.Error(c, fiber.StatusNotFound, "approval request not found")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load approval request")
	}

	return utils.Success(c, fiber.StatusOK, request)
}

type RespondApprovalRequest struct {
	Responses []services.CardResponse `json:"responses"`
}

// Respond records the customer's per-card decisions and closes the request.
func (h *ApprovalHandler) Respond(c *fiber.Ctx) error {
	claims := middleware.GetApprovalClaims(c)
	if claims == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	key := c.Params("key")
	if key != claims.ApprovalKey {
		return utils.Error(c, fiber.StatusForbidden, "token not valid for this approval request")
	}

	var req RespondApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Responses) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "responses are required")
	}

	request, err := h.Approvals.Respond(c.Context(), key, req.Responses)
	switch {
	case errors.Is(err, otp.ErrApprovalNotFound):
		return utils.Error(c, fiber.StatusNotFound, "approval request not found")
	case errors.Is(err, otp.ErrApprovalClosed):
		return utils.Error(c, fiber.StatusConflict, "approval request already completed")
	case err != nil:
		logger.Error("approval_respond_failed", err, map[string]interface{}{
			"approval_key": key,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to record response")
	}

	logger.Info("approval_completed", map[string]interface{}{
		"approval_key": key,
		"email":        claims.Email,
	})

	return utils.Success(c, fiber.StatusOK, request)
}
