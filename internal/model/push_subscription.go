package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    uint      `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Machines []*Machine `gorm:"many2many:subscription_machine_mapping;"`
}

// Models lists every table managed by migrations.
func Models() []any {
	return []any{
		&User{},
		&Machine{},
		&Alert{},
		&Maintenance{},
		&PushSubscription{},
	}
}
