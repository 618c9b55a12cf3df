package model

import "time"

type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenancePredictive MaintenanceType = "predictive"
	MaintenanceRoutine    MaintenanceType = "routine"
)

func (t MaintenanceType) Valid() bool {
	switch t {
	case MaintenancePreventive, MaintenanceCorrective, MaintenancePredictive, MaintenanceRoutine:
		return true
	}
	return false
}

type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenanceScheduled, MaintenanceInProgress, MaintenanceCompleted, MaintenanceCancelled:
		return true
	}
	return false
}

type MaintenancePriority string

const (
	MaintenanceHigh   MaintenancePriority = "high"
	MaintenanceMedium MaintenancePriority = "medium"
	MaintenanceLow    MaintenancePriority = "low"
)

func (p MaintenancePriority) Valid() bool {
	switch p {
	case MaintenanceHigh, MaintenanceMedium, MaintenanceLow:
		return true
	}
	return false
}

// Maintenance is a scheduled or completed service job on a machine.
type Maintenance struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	Title               string              `gorm:"size:256;not null" json:"title"`
	MachineID           uint                `gorm:"not null;index:idx_maintenance_status_date_machine,priority:3" json:"machineId"`
	Type                MaintenanceType     `gorm:"size:16;not null" json:"maintenanceType"`
	Description         string              `gorm:"type:text;not null" json:"description"`
	ScheduledDate       time.Time           `gorm:"not null;index:idx_maintenance_status_date_machine,priority:2" json:"scheduledDate"`
	CompletedDate       *time.Time          `json:"completedDate"`
	EstimatedDuration   float64             `gorm:"not null" json:"estimatedDuration"` // hours
	ActualDuration      *float64            `json:"actualDuration"`
	RequiredParts       []string            `gorm:"serializer:json" json:"requiredParts"`
	AssignedTechnicians []uint              `gorm:"serializer:json" json:"assignedTechnicians"`
	Status              MaintenanceStatus   `gorm:"size:16;not null;index:idx_maintenance_status_date_machine,priority:1" json:"status"`
	Priority            MaintenancePriority `gorm:"size:16;not null" json:"priority"`
	CreatedByID         uint                `gorm:"not null" json:"createdById"`
	CompletedByID       *uint               `json:"completedById"`
	Notes               string              `gorm:"type:text" json:"notes,omitempty"`
	Cost                float64             `gorm:"not null" json:"cost"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`

	// Associations
	Machine     *Machine `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
	CreatedBy   *User    `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	CompletedBy *User    `gorm:"foreignKey:CompletedByID" json:"completedBy,omitempty"`
}

// TableName overrides the default "maintenances".
func (Maintenance) TableName() string {
	return "maintenance_records"
}
