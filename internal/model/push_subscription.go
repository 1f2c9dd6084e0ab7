package model

import "time"

// PushSubscription holds the information for a browser push subscription
// of a site staff member following one project.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	ProjectID string    `gorm:"size:64;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
