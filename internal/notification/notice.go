package notification

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindCriticalAlert  Kind = "critical_alert"
	KindMaintenanceDue Kind = "maintenance_due"
)

// Notice is one event fanned out to every configured channel.
type Notice struct {
	Kind        Kind
	MachineID   uint
	MachineName string
	Location    string
	AlertID     uint
	Title       string
	Priority    string
	DueAt       time.Time
}

func (n Notice) label() string {
	if n.MachineName != "" {
		return n.MachineName
	}
	return fmt.Sprintf("machine %d", n.MachineID)
}

// Subject is the one line summary used for push titles and mail subjects.
func (n Notice) Subject() string {
	switch n.Kind {
	case KindCriticalAlert:
		return fmt.Sprintf("Critical alert on %s", n.label())
	case KindMaintenanceDue:
		return fmt.Sprintf("Maintenance due for %s", n.label())
	default:
		return fmt.Sprintf("Notice for %s", n.label())
	}
}

// Body is the plain text detail.
func (n Notice) Body() string {
	switch n.Kind {
	case KindCriticalAlert:
		return fmt.Sprintf("Alert #%d %q was raised on %s (%s).", n.AlertID, n.Title, n.label(), n.Location)
	case KindMaintenanceDue:
		return fmt.Sprintf("%s (%s) was due for maintenance on %s.",
			n.label(), n.Location, n.DueAt.Format("2006-01-02"))
	default:
		return n.Title
	}
}
