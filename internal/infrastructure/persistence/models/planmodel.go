package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanModel represents the database persistence model for plans
type PlanModel struct {
	ID                uint   `gorm:"primarykey"`
	SID               string `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: plan_xxx"`
	Name              string `gorm:"not null;size:100"`
	Slug              string `gorm:"uniqueIndex;not null;size:100"`
	ExternalProductID string `gorm:"index;size:100;comment:billing-system product id"`
	PriceCents        int64  `gorm:"not null;default:0"`
	Currency          string `gorm:"not null;size:3"`
	Interval          string `gorm:"not null;size:20"`
	DurationDays      int    `gorm:"not null"`
	Features          datatypes.JSON
	Active            bool `gorm:"not null;default:true;index:idx_plan_active"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for GORM
func (PlanModel) TableName() string {
	return "plans"
}
