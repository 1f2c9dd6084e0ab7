package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfirmationStatus is the per-(arrival, item) ledger state.
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusMissing   ConfirmationStatus = "missing"
	StatusAdded     ConfirmationStatus = "added"
)

// Valid reports whether s is part of the status vocabulary.
func (s ConfirmationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusMissing, StatusAdded:
		return true
	}
	return false
}

// Confirmation is the ledger entry for one item on one arrival.
// SourceVehicleID is set only for added rows; nil there means the item was
// discovered in the model rather than moved from another vehicle.
type Confirmation struct {
	ID                string             `gorm:"primaryKey;size:36" json:"id"`
	ProjectID         string             `gorm:"size:64;not null;index" json:"project_id"`
	ArrivedVehicleID  string             `gorm:"size:36;not null;uniqueIndex:idx_confirmation_pair,priority:1" json:"arrived_vehicle_id"`
	ItemID            string             `gorm:"size:36;not null;uniqueIndex:idx_confirmation_pair,priority:2;index" json:"item_id"`
	Status            ConfirmationStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	SourceVehicleID   *string            `gorm:"size:36;index" json:"source_vehicle_id"`
	SourceVehicleCode *string            `gorm:"size:64" json:"source_vehicle_code"`
	Note              string             `gorm:"type:text" json:"note"`
	ConfirmedAt       *time.Time         `json:"confirmed_at"`
	ConfirmedBy       string             `gorm:"size:128" json:"confirmed_by"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func (c *Confirmation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	return nil
}
