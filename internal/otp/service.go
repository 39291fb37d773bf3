package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/internal/shopify"
	"github.com/kanucard/concierge/internal/sms"
	"github.com/kanucard/concierge/pkg/logger"
)

// IdentityLookup resolves an address to a Shopify customer. A nil customer
// with a nil error means "not registered".
type IdentityLookup interface {
	FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*shopify.Customer, error)
}

// ApprovalChecker validates a flow key before a scoped challenge is created.
// Expected failures are ErrApprovalNotFound and ErrApprovalClosed.
type ApprovalChecker interface {
	CheckPending(ctx context.Context, key string) error
}

// Service owns the challenge lifecycle: dispatch, verification and the
// background sweep.
type Service struct {
	lookup    IdentityLookup
	store     Store
	mailer    mail.Sender
	sms       sms.Sender // nil disables the SMS channel
	approvals ApprovalChecker
	cfg       config.OTPConfig

	// Serializes the check-increment-compare sequence per process. Without
	// it two concurrent verify calls could both observe attempts < max and
	// double-increment past the bound.
	mu sync.Mutex

	now func() time.Time
}

func NewService(lookup IdentityLookup, store Store, mailer mail.Sender, smsSender sms.Sender, approvals ApprovalChecker, cfg config.OTPConfig) *Service {
	return &Service{
		lookup:    lookup,
		store:     store,
		mailer:    mailer,
		sms:       smsSender,
		approvals: approvals,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestCode resolves the identity, stores a fresh challenge (overwriting
// any prior one for the same key) and delivers the code. Order matters: an
// unregistered identity fails before anything is written or sent, and an
// invalid approval key fails before a code is even generated.
func (s *Service) RequestCode(ctx context.Context, identifier, approvalKey string) error {
	identifier = strings.TrimSpace(identifier)
	isEmail := strings.Contains(identifier, "@")
	if !isEmail {
		identifier = shopify.NormalizePhone(identifier)
	}

	if approvalKey != "" {
		if s.approvals == nil {
			return ErrApprovalNotFound
		}
		if err := s.approvals.CheckPending(ctx, approvalKey); err != nil {
			return err
		}
	}

	var (
		customer *shopify.Customer
		err      error
	)
	if isEmail {
		customer, err = s.lookup.FindCustomerByEmail(ctx, identifier)
	} else {
		customer, err = s.lookup.FindCustomerByPhone(ctx, identifier)
	}
	if err != nil {
		return fmt.Errorf("identity lookup failed: %w", err)
	}
	if customer == nil {
		return ErrUnregistered
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}

	challenge := Challenge{
		Code:        code,
		ExpiresAt:   s.now().Add(s.cfg.CodeLifetime),
		Customer:    *customer,
		ApprovalKey: approvalKey,
	}

	key := ChallengeKey(identifier, approvalKey)
	if err := s.store.Put(ctx, key, challenge, s.cfg.CodeLifetime); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	logger.Info("otp_challenge_created", map[string]interface{}{
		"identifier":   identifier,
		"scoped":       approvalKey != "",
		"expires_at":   challenge.ExpiresAt,
		"max_attempts": s.cfg.MaxAttempts,
	})

	if err := s.deliver(ctx, identifier, isEmail, code); err != nil {
		// The challenge stays stored; a re-requested send may reuse the
		// window and the caller must not report the account as unregistered.
		return &DeliveryError{Err: err}
	}

	return nil
}

func (s *Service) deliver(ctx context.Context, identifier string, isEmail bool, code string) error {
	if isEmail {
		_, err := s.mailer.Send(ctx, mail.VerificationMessage(identifier, code, s.cfg.CodeLifetime))
		return err
	}

	if s.sms == nil {
		return fmt.Errorf("sms channel disabled")
	}
	return s.sms.Send(ctx, identifier, mail.VerificationSMSBody(code, s.cfg.CodeLifetime))
}

// VerifyCode enforces the challenge policy and returns the identity snapshot
// captured at dispatch time. Check order is fixed: attempt bound, then
// expiry, then code comparison, so a flooded dead challenge answers
// consistently with ErrAttemptsExceeded.
func (s *Service) VerifyCode(ctx context.Context, identifier, code, approvalKey string) (*Challenge, error) {
	identifier = strings.TrimSpace(identifier)
	if !strings.Contains(identifier, "@") {
		identifier = shopify.NormalizePhone(identifier)
	}
	key := ChallengeKey(identifier, approvalKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if !ok {
		return nil, ErrChallengeNotFound
	}

	if challenge.Attempts >= s.cfg.MaxAttempts {
		_ = s.store.Delete(ctx, key)
		return nil, ErrAttemptsExceeded
	}

	// The window is half-open: a code is dead the instant it reaches ExpiresAt.
	if !s.now().Before(challenge.ExpiresAt) {
		_ = s.store.Delete(ctx, key)
		return nil, ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		challenge.Attempts++
		if challenge.Attempts >= s.cfg.MaxAttempts {
			if err := s.store.Put(ctx, key, challenge, time.Until(challenge.ExpiresAt)); err != nil {
				return nil, fmt.Errorf("failed to update challenge: %w", err)
			}
			return nil, ErrAttemptsExceeded
		}
		if err := s.store.Put(ctx, key, challenge, time.Until(challenge.ExpiresAt)); err != nil {
			return nil, fmt.Errorf("failed to update challenge: %w", err)
		}
		return nil, &MismatchError{RemainingAttempts: s.cfg.MaxAttempts - challenge.Attempts}
	}

	// One-time use: the challenge is gone before the token is minted.
	if err := s.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	logger.Info("otp_challenge_consumed", map[string]interface{}{
		"identifier": identifier,
		"scoped":     approvalKey != "",
	})

	return &challenge, nil
}

// StartSweep deletes expired challenges on a fixed interval.
func (s *Service) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := s.store.Sweep(context.Background(), s.now()); err != nil {
				logger.Warn("otp_sweep_failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}()
}
