package model

import "time"

// MachineStatus is the operating state of a machine.
type MachineStatus string

const (
	MachineOperational MachineStatus = "operational"
	MachineMaintenance MachineStatus = "maintenance"
	MachineError       MachineStatus = "error"
	MachineOffline     MachineStatus = "offline"
)

func (s MachineStatus) Valid() bool {
	switch s {
	case MachineOperational, MachineMaintenance, MachineError, MachineOffline:
		return true
	}
	return false
}

// Metrics are the OEE style figures reported for a machine, in percent.
type Metrics struct {
	Performance  float64 `gorm:"not null" json:"performance"`
	Availability float64 `gorm:"not null" json:"availability"`
	Quality      float64 `gorm:"not null" json:"quality"`
}

// DefaultMetrics is what a freshly installed machine reports.
func DefaultMetrics() Metrics {
	return Metrics{Performance: 100, Availability: 100, Quality: 100}
}

// Machine represents a piece of shop floor equipment.
type Machine struct {
	ID                       uint          `gorm:"primaryKey" json:"id"`
	Name                     string        `gorm:"size:256;not null" json:"name"`
	Model                    string        `gorm:"size:128;not null" json:"model"`
	SerialNumber             string        `gorm:"uniqueIndex;size:128;not null" json:"serialNumber"`
	Location                 string        `gorm:"size:128;not null;index" json:"location"`
	Description              string        `gorm:"type:text" json:"description,omitempty"`
	Manufacturer             string        `gorm:"size:128" json:"manufacturer,omitempty"`
	Notes                    string        `gorm:"type:text" json:"notes,omitempty"`
	Status                   MachineStatus `gorm:"size:16;not null;index" json:"status"`
	InstallationDate         time.Time     `json:"installationDate"`
	LastMaintenance          time.Time     `json:"lastMaintenance"`
	NextScheduledMaintenance time.Time     `gorm:"index" json:"nextScheduledMaintenance"`
	MaintenanceInterval      int           `gorm:"not null" json:"maintenanceInterval"` // days
	Metrics                  Metrics       `gorm:"embedded;embeddedPrefix:metrics_" json:"metrics"`
	CreatedByID              uint          `gorm:"index" json:"createdById"`
	CreatedAt                time.Time     `json:"createdAt"`
	UpdatedAt                time.Time     `json:"updatedAt"`

	// Associations
	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
}
