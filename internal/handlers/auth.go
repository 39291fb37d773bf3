package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/middleware"
	"github.com/kanucard/concierge/internal/otp"
	"github.com/kanucard/concierge/internal/services"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

type AuthHandler struct {
	DB    *gorm.DB
	OTP   *otp.Service
	Users *services.UserService
}

func NewAuthHandler(db *gorm.DB, otpService *otp.Service) *AuthHandler {
	return &AuthHandler{
		DB:    db,
		OTP:   otpService,
		Users: services.NewUserService(db),
	}
}

type RequestCodeRequest struct {
	Identifier  string `json:"identifier"`
	ApprovalKey string `json:"approvalKey"`
}

// RequestCode dispatches a one-time code to a registered email or phone.
// Unregistered identities get a 404: the storefront needs to tell customers
// to sign up first, so non-disclosure is deliberately not attempted here.
func (h *AuthHandler) RequestCode(c *fiber.Ctx) error {
	var req RequestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identifier == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identifier is required")
	}

	err := h.OTP.RequestCode(c.Context(), req.Identifier, req.ApprovalKey)

	var deliveryErr *otp.DeliveryError
	switch {
	case err == nil:
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"message": "verification code sent",
		})
	case errors.Is(err, otp.ErrUnregistered):
		return utils.Error(c, fiber.StatusNotFound, "identity is not registered")
	case errors.Is(err, otp.ErrApprovalNotFound):
		return utils.Error(c, fiber.StatusNotFound, "approval request not found")
	case errors.Is(err, otp.ErrApprovalClosed):
		return utils.Error(c, fiber.StatusBadRequest, "approval request already completed")
	case errors.As(err, &deliveryErr):
		logger.Error("otp_delivery_failed", deliveryErr, map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to send verification code")
	default:
		logger.Error("otp_request_failed", err, map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to process request")
	}
}

type VerifyCodeRequest struct {
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	ApprovalKey string `json:"approvalKey"`
}

// VerifyCode checks the submitted code and, on success, provisions the local
// user and mints a bearer token. Plain logins get a refreshable session
// token; approval-scoped logins get a single-purpose approval token instead.
func (h *AuthHandler) VerifyCode(c *fiber.Ctx) error {
	var req VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identifier == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "identifier and code are required")
	}

	challenge, err := h.OTP.VerifyCode(c.Context(), req.Identifier, req.Code, req.ApprovalKey)
	if err != nil {
		var mismatch *otp.MismatchError
		switch {
		case errors.Is(err, otp.ErrChallengeNotFound):
			return utils.Error(c, fiber.StatusBadRequest, "no verification code requested")
		case errors.Is(err, otp.ErrExpired):
			return utils.Error(c, fiber.StatusBadRequest, "verification code expired")
		case errors.Is(err, otp.ErrAttemptsExceeded):
			return utils.Error(c, fiber.StatusTooManyRequests, "too many attempts, request a new code")
		case errors.As(err, &mismatch):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success":           false,
				"error":             "invalid verification code",
				"remainingAttempts": mismatch.RemainingAttempts,
			})
		default:
			logger.Error("otp_verify_failed", err, map[string]interface{}{
				"ip": c.IP(),
			})
			return utils.Error(c, fiber.StatusInternalServerError, "failed to verify code")
		}
	}

	if challenge.ApprovalKey != "" {
		token, err := utils.GenerateApprovalToken(challenge.Customer.ID, challenge.Customer.Email, challenge.ApprovalKey)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to generate token")
		}
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"token":       token,
			"tokenType":   utils.TokenTypeApproval,
			"approvalKey": challenge.ApprovalKey,
		})
	}

	user, err := h.Users.FindOrCreateFromCustomer(c.Context(), challenge.Customer, "")
	if err != nil {
		logger.Error("user_provisioning_failed", err, map[string]interface{}{
			"email": challenge.Customer.Email,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to provision user")
	}

	token, err := utils.GenerateSessionToken(user.ID, user.ShopifyCustomerID, user.Email, user.FirstName, user.LastName)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to generate token")
	}

	logger.InfoWithUser(user.ID.String(), "login_success", map[string]interface{}{
		"email": user.Email,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":     token,
		"tokenType": utils.TokenTypeSession,
		"expiresIn": int(utils.SessionLifetime().Seconds()),
		"user":      user,
	})
}

// Refresh re-mints the caller's session token with a fresh expiry. Approval
// tokens are rejected by the middleware before reaching here.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	token, err := utils.RefreshSessionToken(claims)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":     token,
		"tokenType": utils.TokenTypeSession,
		"expiresIn": int(utils.SessionLifetime().Seconds()),
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

// Logout is stateless: tokens are not tracked server side, the client simply
// discards its copy. The endpoint exists so clients have a uniform call.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user != nil {
		logger.InfoWithUser(user.ID.String(), "logout", map[string]interface{}{
			"email": user.Email,
		})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}
