package otp

import (
	"context"
	"strings"
	"time"

	"github.com/kanucard/concierge/internal/shopify"
)

// Challenge is an outstanding one-time code awaiting verification. The
// customer snapshot is frozen at dispatch time so verification never needs a
// second lookup.
type Challenge struct {
	Code        string           `json:"code"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	Attempts    int              `json:"attempts"`
	Customer    shopify.Customer `json:"customer"`
	ApprovalKey string           `json:"approvalKey,omitempty"`
}

// ChallengeKey derives the store key. Scoped flows append the approval key so
// the same identity can hold independent concurrent challenges per flow.
func ChallengeKey(identifier, approvalKey string) string {
	key := strings.ToLower(strings.TrimSpace(identifier))
	if approvalKey != "" {
		key += "#" + approvalKey
	}
	return key
}

// Store holds live challenges. Implementations overwrite on Put for an
// existing key; the last requested code always wins.
type Store interface {
	Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error
	Get(ctx context.Context, key string) (Challenge, bool, error)
	Delete(ctx context.Context, key string) error
	Sweep(ctx context.Context, now time.Time) error
}
