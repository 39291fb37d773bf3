package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/models"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

const (
	currentUserKey    = "currentUser"
	sessionClaimsKey  = "sessionClaims"
	approvalClaimsKey = "approvalClaims"
)

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errInvalidAuthFormat = errors.New("invalid authorization format")
)

type AuthMiddleware struct {
	DB *gorm.DB
}

func NewAuthMiddleware(db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{DB: db}
}

func CORS(frontendURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: frontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireAuth accepts session bearer tokens only. Approval tokens fail here
// even when unexpired; they never grant session endpoints.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	}

	claims, err := utils.ValidateSessionToken(tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("jwt_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID,
		})
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	c.Locals(currentUserKey, &user)
	c.Locals(sessionClaimsKey, claims)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

func (a *AuthMiddleware) OptionalAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Next()
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		return c.Next()
	}

	claims, err := utils.ValidateSessionToken(tokenString)
	if err != nil {
		return c.Next()
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return c.Next()
	}

	c.Locals(currentUserKey, &user)
	c.Locals(sessionClaimsKey, claims)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

// RequireApproval accepts approval-scoped bearer tokens. The matching of the
// token's approval key against the requested record happens in the handler.
func RequireApproval(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	}

	claims, err := utils.ValidateApprovalToken(tokenString)
	if err != nil {
		logger.Warn("approval_token_invalid", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	c.Locals(approvalClaimsKey, claims)
	return c.Next()
}

// AdminBasicAuth guards operator endpoints with basic auth against a bcrypt
// hash from configuration. An empty hash disables the endpoints outright.
func AdminBasicAuth(cfg config.AdminConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.PasswordHash == "" {
			return utils.Error(c, fiber.StatusForbidden, "admin access not configured")
		}

		user, password, ok := basicCredentials(c)
		if !ok {
			c.Set("WWW-Authenticate", `Basic realm="admin"`)
			return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
		passErr := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password))
		if !userMatch || passErr != nil {
			logger.Warn("admin_auth_failed", map[string]interface{}{
				"ip":   c.IP(),
				"path": c.Path(),
			})
			c.Set("WWW-Authenticate", `Basic realm="admin"`)
			return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
		}

		return c.Next()
	}
}

// bearerToken extracts the bearer credential. It never writes to the
// response; callers turn the sentinel errors into a single 401.
func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return "", errMissingAuthHeader
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return "", errInvalidAuthFormat
	}

	return tokenString, nil
}

func basicCredentials(c *fiber.Ctx) (string, string, bool) {
	const prefix = "Basic "
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
	if err != nil {
		return "", "", false
	}
	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return user, password, true
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func GetSessionClaims(c *fiber.Ctx) *utils.SessionClaims {
	value := c.Locals(sessionClaimsKey)
	if value == nil {
		return nil
	}
	claims, ok := value.(*utils.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func GetApprovalClaims(c *fiber.Ctx) *utils.ApprovalClaims {
	value := c.Locals(approvalClaimsKey)
	if value == nil {
		return nil
	}
	claims, ok := value.(*utils.ApprovalClaims)
	if !ok {
		return nil
	}
	return claims
}
