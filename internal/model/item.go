package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemStatus is the delivery state of a cargo piece.
type ItemStatus string

const (
	ItemPlanned   ItemStatus = "planned"
	ItemDelivered ItemStatus = "delivered"
)

// Item is one cargo piece. VehicleID is where the piece is believed to be now,
// which can differ from the vehicle it was originally scheduled on.
type Item struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	ProjectID     string          `gorm:"size:64;not null;index;uniqueIndex:idx_item_project_guid,priority:1" json:"project_id"`
	VehicleID     *string         `gorm:"size:36;index" json:"vehicle_id"`
	ScheduledDate string          `gorm:"size:10" json:"scheduled_date"`
	AssemblyMark  string          `gorm:"size:128;not null" json:"assembly_mark"`
	ProductName   string          `gorm:"size:256" json:"product_name"`
	Weight        decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"weight"`
	GUID          *string         `gorm:"column:guid;size:64;uniqueIndex:idx_item_project_guid,priority:2" json:"guid"`
	ModelID       string          `gorm:"size:64" json:"model_id"`
	Status        ItemStatus      `gorm:"size:16;not null;default:'planned'" json:"status"`
	FromModel     bool            `gorm:"not null;default:false" json:"from_model"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Status == "" {
		i.Status = ItemPlanned
	}
	return nil
}

// ObjectGUID returns the model-object identifier, or "" when the item has none.
func (i Item) ObjectGUID() string {
	if i.GUID == nil {
		return ""
	}
	return *i.GUID
}

// OnVehicle reports whether the item's current vehicle pointer is vehicleID.
func (i Item) OnVehicle(vehicleID string) bool {
	return i.VehicleID != nil && *i.VehicleID == vehicleID
}
