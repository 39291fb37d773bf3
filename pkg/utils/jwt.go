package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeSession  = "session"
	TokenTypeApproval = "approval"
)

var (
	jwtSecret        = []byte("change-me-in-production")
	sessionLifetime  = 30 * time.Minute
	approvalLifetime = 1 * time.Hour
)

// SessionClaims carries the identity captured when the OTP challenge was
// dispatched. Verification never re-fetches the customer, so the claims are
// the snapshot, not the current Shopify state.
type SessionClaims struct {
	UserID     uuid.UUID `json:"userID"`
	CustomerID string    `json:"customerId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	TokenType  string    `json:"tokenType"`
	jwt.RegisteredClaims
}

// ApprovalClaims authorizes exactly one buyout approval record. Approval
// tokens are single-purpose and cannot be refreshed.
type ApprovalClaims struct {
	CustomerID  string `json:"customerId,omitempty"`
	Email       string `json:"email"`
	ApprovalKey string `json:"approvalKey"`
	TokenType   string `json:"tokenType"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, sessionExpiry, approvalExpiry time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if sessionExpiry > 0 {
		sessionLifetime = sessionExpiry
	}
	if approvalExpiry > 0 {
		approvalLifetime = approvalExpiry
	}
}

func SessionLifetime() time.Duration {
	return sessionLifetime
}

func GenerateSessionToken(userID uuid.UUID, customerID, email, firstName, lastName string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:     userID,
		CustomerID: customerID,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
		TokenType:  TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// RefreshSessionToken re-mints a session token with the same identity claims
// and a fresh expiry. Approval tokens are deliberately not refreshable.
func RefreshSessionToken(claims *SessionClaims) (string, error) {
	if claims.TokenType != TokenTypeSession {
		return "", fmt.Errorf("only session tokens can be refreshed")
	}
	return GenerateSessionToken(claims.UserID, claims.CustomerID, claims.Email, claims.FirstName, claims.LastName)
}

func ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.TokenType != TokenTypeSession {
		return nil, fmt.Errorf("invalid token type")
	}

	return claims, nil
}

func GenerateApprovalToken(customerID, email, approvalKey string) (string, error) {
	now := time.Now()
	claims := ApprovalClaims{
		CustomerID:  customerID,
		Email:       email,
		ApprovalKey: approvalKey,
		TokenType:   TokenTypeApproval,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(approvalLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateApprovalToken(tokenString string) (*ApprovalClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ApprovalClaims{}, keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ApprovalClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.TokenType != TokenTypeApproval {
		return nil, fmt.Errorf("invalid token type")
	}

	if claims.ApprovalKey == "" {
		return nil, fmt.Errorf("missing approval key")
	}

	return claims, nil
}

func keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method")
	}
	return jwtSecret, nil
}
