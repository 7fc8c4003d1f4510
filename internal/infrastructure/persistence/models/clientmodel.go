package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClientModel represents the database persistence model for clients
type ClientModel struct {
	ID          uint   `gorm:"primarykey"`
	SID         string `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: cli_xxx"`
	Name        string `gorm:"size:100"`
	Email       string `gorm:"uniqueIndex;not null;size:255"`
	ExternalIDs datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}
