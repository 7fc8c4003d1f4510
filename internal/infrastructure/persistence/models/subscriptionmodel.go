package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionModel represents the database persistence model for subscriptions
// This is the anti-corruption layer between domain and database
type SubscriptionModel struct {
	ID                uint   `gorm:"primarykey"`
	SID               string `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: sub_xxx"`
	ExternalReference string `gorm:"uniqueIndex;not null;size:100;comment:billing-system key, e.g. wc-sub-123"`
	ClientID          uint   `gorm:"not null;index:idx_client_subscription"`
	PlanID            uint   `gorm:"index:idx_plan_subscription"`
	Status            string `gorm:"not null;size:20;index:idx_status"`
	StartsAt          *time.Time
	EndsAt            *time.Time `gorm:"index:idx_ends_at"`
	CancelledAt       *time.Time
	LastSyncedAt      time.Time `gorm:"not null"`
	LastRenewalAt     *time.Time
	BillingCycleCount int    `gorm:"not null;default:0"`
	RenewalToken      string `gorm:"uniqueIndex;not null;size:64"`
	Metadata          datatypes.JSON
	Version           int `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// BeforeCreate hook for GORM
func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
