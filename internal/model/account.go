package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription plans. PlanPremium unlocks the high-quality image pipeline.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

type User struct {
	ID           uuid.UUID      `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Plan         string         `gorm:"size:20;not null;default:'free'" json:"plan"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// CreditAccount holds the two credit pools for a user. Both pools are
// non-negative at all times; only the credit ledger mutates them.
type CreditAccount struct {
	ID                  uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	AccountID           uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex" json:"account_id"`
	RecurringCredits    int       `gorm:"not null;default:0;check:recurring_credits >= 0" json:"recurring_credits"`
	SupplementalCredits int       `gorm:"not null;default:0;check:supplemental_credits >= 0" json:"supplemental_credits"`
}

func (a *CreditAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
