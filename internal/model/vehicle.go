package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout is the calendar-day format used for scheduled and arrival dates.
const DateLayout = "2006-01-02"

// VehicleStatus is the lifecycle state of a schedule line.
type VehicleStatus string

const (
	VehiclePlanned   VehicleStatus = "planned"
	VehicleCompleted VehicleStatus = "completed"
)

// Vehicle is one scheduled delivery (a schedule line), not a physical arrival.
type Vehicle struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	ProjectID     string          `gorm:"size:64;not null;uniqueIndex:idx_vehicle_project_code,priority:1" json:"project_id"`
	Code          string          `gorm:"size:64;not null;uniqueIndex:idx_vehicle_project_code,priority:2" json:"code"`
	ScheduledDate string          `gorm:"size:10;index" json:"scheduled_date"`
	Factory       string          `gorm:"size:128" json:"factory"`
	TotalWeight   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"total_weight"`
	Status        VehicleStatus   `gorm:"size:16;not null;default:'planned'" json:"status"`
	Unplanned     bool            `gorm:"not null;default:false" json:"unplanned"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = VehiclePlanned
	}
	return nil
}
