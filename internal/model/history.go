package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryAction names what an ItemHistory row records.
type HistoryAction string

const (
	ActionStatusChange  HistoryAction = "status_change"
	ActionVehicleChange HistoryAction = "vehicle_change"
	ActionReassignUndo  HistoryAction = "reassign_undo"
)

// ItemHistory is an append-only audit record. Rows are never updated.
type ItemHistory struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string        `gorm:"size:64;not null;index" json:"project_id"`
	ItemID    string        `gorm:"size:36;not null;index" json:"item_id"`
	Action    HistoryAction `gorm:"size:32;not null" json:"action"`
	OldValue  string        `gorm:"size:256" json:"old_value"`
	NewValue  string        `gorm:"size:256" json:"new_value"`
	Reason    string        `gorm:"type:text" json:"reason"`
	Actor     string        `gorm:"size:128" json:"actor"`
	CreatedAt time.Time     `gorm:"not null;index" json:"created_at"`
}

func (h *ItemHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
