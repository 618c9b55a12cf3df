// Package schedule derives maintenance dates from a machine's service interval.
package schedule

import (
	"strconv"
	"strings"
	"time"
)

// DefaultIntervalDays applies when no usable interval is given.
const DefaultIntervalDays = 90

// Dates is a machine's maintenance bookkeeping.
type Dates struct {
	Last time.Time
	Next time.Time
}

// OnMachineCreate starts the schedule at now.
func OnMachineCreate(now time.Time, intervalDays int) Dates {
	return Dates{Last: now, Next: addDays(now, intervalDays)}
}

// OnIntervalChange recomputes the next date from the unchanged last maintenance.
func OnIntervalChange(last time.Time, intervalDays int) time.Time {
	return addDays(last, intervalDays)
}

// OnMaintenanceCompleted restarts the schedule at the completion date.
func OnMaintenanceCompleted(completedAt time.Time, intervalDays int) Dates {
	return Dates{Last: completedAt, Next: addDays(completedAt, intervalDays)}
}

// ParseInterval reads an interval in days. Anything missing, non numeric or
// not positive yields DefaultIntervalDays.
func ParseInterval(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultIntervalDays
	}
	return Normalize(n)
}

// Normalize replaces a non positive interval with the default.
func Normalize(days int) int {
	if days <= 0 {
		return DefaultIntervalDays
	}
	return days
}

// calendar days, not 24h multiples
func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, Normalize(days))
}
