package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kanucard/concierge/internal/models"
	"github.com/kanucard/concierge/internal/shopify"
)

// UserService provisions local user rows for verified Shopify customers.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// FindOrCreateFromCustomer upserts the local user for a customer snapshot and
// stamps the login time. Identity fields are refreshed on every login so the
// row tracks the Shopify record.
func (u *UserService) FindOrCreateFromCustomer(ctx context.Context, customer shopify.Customer, provider string) (*models.User, error) {
	now := time.Now()

	var user models.User
	err := u.DB.WithContext(ctx).First(&user, "email = ?", customer.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Email:             customer.Email,
			FirstName:         customer.FirstName,
			LastName:          customer.LastName,
			ShopifyCustomerID: customer.ID,
			LastLoginAt:       &now,
		}
		if customer.Phone != "" {
			user.Phone = &customer.Phone
		}
		if provider != "" {
			user.AuthProvider = &provider
		}
		if err := u.DB.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"first_name":          customer.FirstName,
		"last_name":           customer.LastName,
		"shopify_customer_id": customer.ID,
		"last_login_at":       now,
	}
	if customer.Phone != "" {
		updates["phone"] = customer.Phone
	}
	if provider != "" {
		updates["auth_provider"] = provider
	}
	if err := u.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}
