package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Photo is an image attached to an arrival, or to one item of an arrival.
type Photo struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID        string    `gorm:"size:64;not null;index" json:"project_id"`
	ArrivedVehicleID string    `gorm:"size:36;not null;index" json:"arrived_vehicle_id"`
	ItemID           *string   `gorm:"size:36;index" json:"item_id"`
	Path             string    `gorm:"size:512;not null" json:"path"`
	URL              string    `gorm:"size:1024" json:"url"`
	FileName         string    `gorm:"size:256" json:"file_name"`
	ContentType      string    `gorm:"size:128" json:"content_type"`
	Size             int64     `json:"size"`
	UploadedBy       string    `gorm:"size:128" json:"uploaded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
