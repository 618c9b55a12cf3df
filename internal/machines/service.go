// Package machines manages the machine registry and its maintenance schedule.
package machines

import (
	"context"
	"strings"
	"time"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/metrics"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
	"shopfloor-ops-backend/internal/schedule"
	"shopfloor-ops-backend/internal/store"
)

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: s, now: now}
}

type CreateInput struct {
	Name                string
	Model               string
	SerialNumber        string
	Location            string
	Description         string
	Manufacturer        string
	Notes               string
	Status              model.MachineStatus
	InstallationDate    *time.Time
	MaintenanceInterval int
}

// Patch is a partial machine update. Nil fields are left unchanged.
type Patch struct {
	Name                *string
	Model               *string
	SerialNumber        *string
	Location            *string
	Description         *string
	Manufacturer        *string
	Notes               *string
	InstallationDate    *time.Time
	MaintenanceInterval *int
}

type MetricsPatch struct {
	Performance  *float64
	Availability *float64
	Quality      *float64
}

type ListQuery struct {
	Status   string
	Location string
	Search   string
	Page     int
	Limit    int
}

func (s *Service) List(ctx context.Context, actor policy.Actor, q ListQuery) (*store.Page[model.Machine], error) {
	if err := policy.Evaluate(actor, policy.MachineList, nil); err != nil {
		return nil, err
	}
	sq := store.MachineQuery{
		Status:     model.MachineStatus(q.Status),
		Location:   q.Location,
		Search:     q.Search,
		Pagination: store.Pagination{Page: q.Page, Limit: q.Limit},
	}
	if sq.Status != "" && !sq.Status.Valid() {
		return nil, apperr.Validation("invalid status filter %q", q.Status)
	}
	return s.store.ListMachines(ctx, sq)
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id uint) (*model.Machine, error) {
	if err := policy.Evaluate(actor, policy.MachineView, nil); err != nil {
		return nil, err
	}
	return s.store.GetMachine(ctx, id)
}

// Create registers a machine and starts its maintenance schedule today.
func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (*model.Machine, error) {
	if err := policy.Evaluate(actor, policy.MachineCreate, nil); err != nil {
		return nil, err
	}

	m := &model.Machine{
		Name:         strings.TrimSpace(in.Name),
		Model:        strings.TrimSpace(in.Model),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		Location:     strings.TrimSpace(in.Location),
		Description:  in.Description,
		Manufacturer: in.Manufacturer,
		Notes:        in.Notes,
		Status:       in.Status,
		Metrics:      model.DefaultMetrics(),
		CreatedByID:  actor.ID,
	}
	switch {
	case m.Name == "":
		return nil, apperr.Validation("name is required")
	case m.Model == "":
		return nil, apperr.Validation("model is required")
	case m.SerialNumber == "":
		return nil, apperr.Validation("serialNumber is required")
	case m.Location == "":
		return nil, apperr.Validation("location is required")
	}
	if m.Status == "" {
		m.Status = model.MachineOperational
	}
	if !m.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", m.Status)
	}

	taken, err := s.store.SerialNumberTaken(ctx, m.SerialNumber, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("serial number already in use")
	}

	now := s.now()
	m.InstallationDate = now
	if in.InstallationDate != nil {
		m.InstallationDate = *in.InstallationDate
	}
	m.MaintenanceInterval = schedule.Normalize(in.MaintenanceInterval)
	dates := schedule.OnMachineCreate(now, m.MaintenanceInterval)
	m.LastMaintenance, m.NextScheduledMaintenance = dates.Last, dates.Next

	if err := s.store.CreateMachine(ctx, m); err != nil {
		return nil, err
	}
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().
		Uint("machine_id", m.ID).Str("serial", m.SerialNumber).Msg("machine registered")
	return s.store.GetMachine(ctx, m.ID)
}

// Update applies a patch. Changing the interval recomputes the next
// maintenance date from the unchanged last maintenance.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uint, p Patch) (*model.Machine, error) {
	if err := policy.Evaluate(actor, policy.MachineUpdate, nil); err != nil {
		return nil, err
	}
	m, err := s.store.GetMachine(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		dst      *string
		src      *string
		field    string
		required bool
	}{
		{&m.Name, p.Name, "name", true},
		{&m.Model, p.Model, "model", true},
		{&m.Location, p.Location, "location", true},
		{&m.Description, p.Description, "description", false},
		{&m.Manufacturer, p.Manufacturer, "manufacturer", false},
		{&m.Notes, p.Notes, "notes", false},
	} {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if f.required && v == "" {
			return nil, apperr.Validation("%s cannot be empty", f.field)
		}
		*f.dst = v
	}

	if p.SerialNumber != nil {
		serial := strings.TrimSpace(*p.SerialNumber)
		if serial == "" {
			return nil, apperr.Validation("serialNumber cannot be empty")
		}
		if serial != m.SerialNumber {
			taken, err := s.store.SerialNumberTaken(ctx, serial, m.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperr.Conflict("serial number already in use")
			}
			m.SerialNumber = serial
		}
	}
	if p.InstallationDate != nil {
		m.InstallationDate = *p.InstallationDate
	}
	if p.MaintenanceInterval != nil {
		if *p.MaintenanceInterval <= 0 {
			return nil, apperr.Validation("maintenanceInterval must be a positive number of days")
		}
		if *p.MaintenanceInterval != m.MaintenanceInterval {
			m.MaintenanceInterval = *p.MaintenanceInterval
			m.NextScheduledMaintenance = schedule.OnIntervalChange(m.LastMaintenance, m.MaintenanceInterval)
		}
	}

	m.CreatedBy = nil
	if err := s.store.SaveMachine(ctx, m); err != nil {
		return nil, err
	}
	return s.store.GetMachine(ctx, m.ID)
}

// Delete removes the machine together with its alerts and maintenance records.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Evaluate(actor, policy.MachineDelete, nil); err != nil {
		return err
	}
	if err := s.store.DeleteMachine(ctx, id); err != nil {
		return err
	}
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Uint("machine_id", id).Msg("machine deleted")
	return nil
}

// UpdateStatus sets the machine status by hand. The write is a compare and
// swap against the status just read so a concurrent alert driven change is
// not overwritten.
func (s *Service) UpdateStatus(ctx context.Context, actor policy.Actor, id uint, status model.MachineStatus) (model.MachineStatus, error) {
	if err := policy.Evaluate(actor, policy.MachineStatus, nil); err != nil {
		return "", err
	}
	if !status.Valid() {
		return "", apperr.Validation("invalid status %q", status)
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		m, err := tx.GetMachineForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.Status == status {
			return nil
		}
		swapped, err := tx.CompareAndSwapMachineStatus(ctx, id, m.Status, status)
		if err != nil {
			return err
		}
		if !swapped {
			return apperr.Conflict("machine status changed concurrently, retry")
		}
		metrics.MachineStatusChanged(string(m.Status), string(status), metrics.ReasonManual)
		logger := logging.GetLoggerFromContext(ctx)
		logger.Info().
			Uint("machine_id", id).Str("from", string(m.Status)).Str("to", string(status)).Str("reason", metrics.ReasonManual).
			Msg("machine status changed")
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// UpdateMetrics overwrites the supplied figures. Values are stored as given.
func (s *Service) UpdateMetrics(ctx context.Context, actor policy.Actor, id uint, p MetricsPatch) (model.Metrics, error) {
	if err := policy.Evaluate(actor, policy.MachineMetrics, nil); err != nil {
		return model.Metrics{}, err
	}
	m, err := s.store.GetMachine(ctx, id)
	if err != nil {
		return model.Metrics{}, err
	}
	if p.Performance != nil {
		m.Metrics.Performance = *p.Performance
	}
	if p.Availability != nil {
		m.Metrics.Availability = *p.Availability
	}
	if p.Quality != nil {
		m.Metrics.Quality = *p.Quality
	}
	m.CreatedBy = nil
	if err := s.store.SaveMachine(ctx, m); err != nil {
		return model.Metrics{}, err
	}
	return m.Metrics, nil
}

// DueForMaintenance lists machines whose next maintenance is at or before before.
func (s *Service) DueForMaintenance(ctx context.Context, before time.Time) ([]model.Machine, error) {
	return s.store.ListMachinesDue(ctx, before)
}
