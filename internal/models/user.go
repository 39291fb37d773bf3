package models

import "time"

// User is the local mirror of a Shopify customer who has completed at least
// one OTP login. Shopify remains the source of truth for identity; this row
// only anchors sessions and concierge records.
type User struct {
	BaseModel
	Email             string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName         string     `json:"firstName" gorm:"type:varchar(100)"`
	LastName          string     `json:"lastName" gorm:"type:varchar(100)"`
	Phone             *string    `json:"phone,omitempty" gorm:"type:varchar(32);index"`
	ShopifyCustomerID string     `json:"shopifyCustomerId" gorm:"type:varchar(128);index"`
	AuthProvider      *string    `json:"authProvider,omitempty" gorm:"type:varchar(32)"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
}
