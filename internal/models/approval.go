package models

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusCompleted ApprovalStatus = "completed"
)

// ApprovalRequest is a buyout approval sent to a customer. The Key is the
// opaque flow token embedded in the emailed link; OTP challenges and bearer
// tokens for this flow are scoped to it.
type ApprovalRequest struct {
	BaseModel
	Key          string         `json:"approvalKey" gorm:"type:varchar(64);uniqueIndex;not null"`
	CustomerName string         `json:"customerName" gorm:"type:varchar(200);not null"`
	Email        string         `json:"email" gorm:"type:varchar(255);index;not null"`
	Status       ApprovalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Cards        []ApprovalCard `json:"cards" gorm:"foreignKey:ApprovalRequestID"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

type ApprovalCard struct {
	BaseModel
	ApprovalRequestID uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
	PlayerName        string    `json:"playerName" gorm:"type:varchar(200)"`
	Year              string    `json:"year" gorm:"type:varchar(20)"`
	CardName          string    `json:"cardName" gorm:"type:varchar(200)"`
	Number            string    `json:"number" gorm:"type:varchar(50)"`
	GradeLevel        string    `json:"gradeLevel" gorm:"type:varchar(50)"`
	Response          *string   `json:"response,omitempty" gorm:"type:varchar(20)"`
}
