package otp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregistered means the identity lookup found no Shopify customer.
	// No challenge is created and nothing is sent in that case.
	ErrUnregistered = errors.New("identity is not registered")

	// ErrChallengeNotFound covers "never requested", "already consumed" and
	// "expired and swept" alike; callers must not distinguish them.
	ErrChallengeNotFound = errors.New("challenge not found")

	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrExpired          = errors.New("challenge expired")

	ErrApprovalNotFound = errors.New("approval request not found")
	ErrApprovalClosed   = errors.New("approval request already completed")
)

// MismatchError reports a wrong code along with how many tries remain, for
// the client UI.
type MismatchError struct {
	RemainingAttempts int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("code mismatch, %d attempts remaining", e.RemainingAttempts)
}

// DeliveryError means every configured channel failed. The challenge stays
// stored so the end user is not told the account is unregistered.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "code delivery failed: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
