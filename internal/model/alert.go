package model

import "time"

// AlertPriority ranks how urgently an alert needs attention.
type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

func (p AlertPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// AlertStatus is the lifecycle stage of an alert.
type AlertStatus string

const (
	AlertOpen       AlertStatus = "open"
	AlertAssigned   AlertStatus = "assigned"
	AlertInProgress AlertStatus = "in_progress"
	AlertResolved   AlertStatus = "resolved"
	AlertClosed     AlertStatus = "closed"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertOpen, AlertAssigned, AlertInProgress, AlertResolved, AlertClosed:
		return true
	}
	return false
}

// Outstanding reports whether the alert still needs work.
func (s AlertStatus) Outstanding() bool {
	return s != AlertResolved && s != AlertClosed
}

// Alert is a problem report raised against a machine.
type Alert struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Title        string        `gorm:"size:256;not null" json:"title"`
	Description  string        `gorm:"type:text;not null" json:"description"`
	MachineID    uint          `gorm:"not null;index:idx_alerts_status_priority_machine,priority:3" json:"machineId"`
	Priority     AlertPriority `gorm:"size:16;not null;index:idx_alerts_status_priority_machine,priority:2" json:"priority"`
	Status       AlertStatus   `gorm:"size:16;not null;index:idx_alerts_status_priority_machine,priority:1" json:"status"`
	CreatedByID  uint          `gorm:"not null;index" json:"createdById"`
	AssignedToID *uint         `gorm:"index" json:"assignedToId"`
	ResolvedAt   *time.Time    `json:"resolvedAt"`
	ResolvedByID *uint         `json:"resolvedById"`
	Photos       []string      `gorm:"serializer:json" json:"photos"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// Associations
	Machine    *Machine `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
	CreatedBy  *User    `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	AssignedTo *User    `gorm:"foreignKey:AssignedToID" json:"assignedTo,omitempty"`
	ResolvedBy *User    `gorm:"foreignKey:ResolvedByID" json:"resolvedBy,omitempty"`
}
