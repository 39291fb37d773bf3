package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/models"
	"github.com/kanucard/concierge/internal/otp"
)

// ApprovalService manages buyout approval requests and their card lists.
type ApprovalService struct {
	DB *gorm.DB
}

func NewApprovalService(db *gorm.DB) *ApprovalService {
	return &ApprovalService{DB: db}
}

// CardInput is one card row as submitted by an operator.
type CardInput struct {
	PlayerName string `json:"playerName"`
	Year       string `json:"year"`
	CardName   string `json:"cardName"`
	Number     string `json:"number"`
	GradeLevel string `json:"gradeLevel"`
}

// Create persists a new pending approval request with a random opaque key.
func (a *ApprovalService) Create(ctx context.Context, customerName, email string, cards []CardInput) (*models.ApprovalRequest, error) {
	key, err := generateApprovalKey()
	if err != nil {
		return nil, err
	}

	request := &models.ApprovalRequest{
		Key:          key,
		CustomerName: customerName,
		Email:        email,
		Status:       models.ApprovalStatusPending,
	}
	for _, card := range cards {
		request.Cards = append(request.Cards, models.ApprovalCard{
			PlayerName: card.PlayerName,
			Year:       card.Year,
			CardName:   card.CardName,
			Number:     card.Number,
			GradeLevel: card.GradeLevel,
		})
	}

	if err := a.DB.WithContext(ctx).Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create approval request: %w", err)
	}
	return request, nil
}

// FindByKey loads an approval request and its cards.
func (a *ApprovalService) FindByKey(ctx context.Context, key string) (*models.ApprovalRequest, error) {
	var request models.ApprovalRequest
	err := a.DB.WithContext(ctx).
		Preload("Cards").
		First(&request, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, otp.ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// CheckPending gates OTP dispatch for scoped flows: the key must exist and
// the request must still be open.
func (a *ApprovalService) CheckPending(ctx context.Context, key string) error {
	request, err := a.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	if request.Status != models.ApprovalStatusPending {
		return otp.ErrApprovalClosed
	}
	return nil
}

// CardResponse records one customer decision per card.
type CardResponse struct {
	CardID   string `json:"cardId"`
	Response string `json:"response"`
}

// Respond records the customer's per-card decisions and closes the request.
// A completed request cannot be answered twice.
func (a *ApprovalService) Respond(ctx context.Context, key string, responses []CardResponse) (*models.ApprovalRequest, error) {
	request, err := a.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ApprovalStatusPending {
		return nil, otp.ErrApprovalClosed
	}

	byID := make(map[string]string, len(responses))
	for _, r := range responses {
		byID[r.CardID] = r.Response
	}

	now := time.Now()
	err = a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range request.Cards {
			card := &request.Cards[i]
			response, ok := byID[card.ID.String()]
			if !ok {
				continue
			}
			card.Response = &response
			if err := tx.Model(card).Update("response", response).Error; err != nil {
				return err
			}
		}

		request.Status = models.ApprovalStatusCompleted
		request.CompletedAt = &now
		return tx.Model(request).
			Updates(map[string]interface{}{"status": request.Status, "completed_at": now}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record approval response: %w", err)
	}
	return request, nil
}

func generateApprovalKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate approval key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
