package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/otp"
	"github.com/kanucard/concierge/internal/services"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// SSOHandler signs customers in with Google. A Google identity still has to
// pass the Shopify registration gate: sign-in succeeds only for emails that
// resolve to an existing customer.
type SSOHandler struct {
	Cfg         *oauth2.Config
	Lookup      otp.IdentityLookup
	Users       *services.UserService
	FrontendURL string
}

func NewSSOHandler(db *gorm.DB, cfg config.GoogleConfig, lookup otp.IdentityLookup, frontendURL string) *SSOHandler {
	return &SSOHandler{
		Cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Lookup:      lookup,
		Users:       services.NewUserService(db),
		FrontendURL: frontendURL,
	}
}

func (h *SSOHandler) enabled() bool {
	return h.Cfg.ClientID != "" && h.Cfg.ClientSecret != ""
}

// GetLoginRedirect returns the Google authorization URL.
func (h *SSOHandler) GetLoginRedirect(c *fiber.Ctx) error {
	if !h.enabled() {
		return utils.Error(c, fiber.StatusNotFound, "google sign-in not configured")
	}

	state := uuid.NewString()
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":   h.Cfg.AuthCodeURL(state),
		"state": state,
	})
}

type googleProfile struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// HandleCallback exchanges the authorization code, applies the Shopify gate
// and redirects back to the frontend with a session token.
func (h *SSOHandler) HandleCallback(c *fiber.Ctx) error {
	if !h.enabled() {
		return utils.Error(c, fiber.StatusNotFound, "google sign-in not configured")
	}

	code := c.Query("code")
	if code == "" {
		return h.redirectError(c, "authorization code is required")
	}

	token, err := h.Cfg.Exchange(c.Context(), code)
	if err != nil {
		return h.redirectError(c, "failed to exchange authorization code")
	}

	profile, err := h.fetchProfile(c, token)
	if err != nil {
		return h.redirectError(c, "failed to fetch google profile")
	}
	if profile.Email == "" {
		return h.redirectError(c, "google profile has no email")
	}

	customer, err := h.Lookup.FindCustomerByEmail(c.Context(), profile.Email)
	if err != nil {
		logger.Error("sso_shopify_lookup_failed", err, map[string]interface{}{
			"email": profile.Email,
		})
		return h.redirectError(c, "failed to verify registration")
	}
	if customer == nil {
		return h.redirectError(c, "identity is not registered")
	}

	user, err := h.Users.FindOrCreateFromCustomer(c.Context(), *customer, "google")
	if err != nil {
		return h.redirectError(c, "failed to provision user")
	}

	sessionToken, err := utils.GenerateSessionToken(user.ID, user.ShopifyCustomerID, user.Email, user.FirstName, user.LastName)
	if err != nil {
		return h.redirectError(c, "failed to generate token")
	}

	logger.InfoWithUser(user.ID.String(), "sso_login_success", map[string]interface{}{
		"email":    user.Email,
		"provider": "google",
	})

	return c.Redirect(h.FrontendURL + "/auth/callback?token=" + url.QueryEscape(sessionToken))
}

func (h *SSOHandler) fetchProfile(c *fiber.Ctx, token *oauth2.Token) (*googleProfile, error) {
	client := h.Cfg.Client(c.Context(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var profile googleProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (h *SSOHandler) redirectError(c *fiber.Ctx, message string) error {
	return c.Redirect(h.FrontendURL + "/login?error=" + url.QueryEscape(message))
}
