package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnloadResources records the equipment and people used to unload one arrival.
type UnloadResources struct {
	Cranes          int    `gorm:"not null;default:0" json:"cranes"`
	Forklifts       int    `gorm:"not null;default:0" json:"forklifts"`
	Telehandlers    int    `gorm:"not null;default:0" json:"telehandlers"`
	Workers         int    `gorm:"not null;default:0" json:"workers"`
	CraneName       string `gorm:"size:128" json:"crane_name"`
	ForkliftName    string `gorm:"size:128" json:"forklift_name"`
	TelehandlerName string `gorm:"size:128" json:"telehandler_name"`
}

// ArrivedVehicle is one physical arrival event of a Vehicle.
type ArrivedVehicle struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string          `gorm:"size:64;not null;index" json:"project_id"`
	VehicleID   string          `gorm:"size:36;not null;uniqueIndex:idx_arrival_vehicle_date,priority:1" json:"vehicle_id"`
	ArrivalDate string          `gorm:"size:10;not null;uniqueIndex:idx_arrival_vehicle_date,priority:2" json:"arrival_date"`
	ArrivalTime string          `gorm:"size:5" json:"arrival_time"`
	UnloadStart string          `gorm:"size:5" json:"unload_start"`
	UnloadEnd   string          `gorm:"size:5" json:"unload_end"`
	Location    string          `gorm:"size:256" json:"location"`
	Resources   UnloadResources `gorm:"embedded;embeddedPrefix:unload_" json:"resources"`
	Notes       string          `gorm:"type:text" json:"notes"`
	IsConfirmed bool            `gorm:"not null;default:false" json:"is_confirmed"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
	ConfirmedBy string          `gorm:"size:128" json:"confirmed_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (a *ArrivedVehicle) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
