package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnassignedArrival is a site report of a piece found without a vehicle link.
type UnassignedArrival struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	ProjectID    string     `gorm:"size:64;not null;index" json:"project_id"`
	ItemID       *string    `gorm:"size:36;index" json:"item_id"`
	AssemblyMark string     `gorm:"size:128" json:"assembly_mark"`
	Location     string     `gorm:"size:256" json:"location"`
	Notes        string     `gorm:"type:text" json:"notes"`
	ReportedBy   string     `gorm:"size:128" json:"reported_by"`
	ReportedAt   time.Time  `gorm:"not null" json:"reported_at"`
	Resolved     bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	ResolvedBy   string     `gorm:"size:128" json:"resolved_by"`
}

func (u *UnassignedArrival) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
