// Package maintenance manages service jobs on machines.
package maintenance

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
	Title               string
	MachineID           uint
	Type                model.MaintenanceType
	Description         string
	ScheduledDate       time.Time
	EstimatedDuration   float64
	RequiredParts       []string
	AssignedTechnicians []uint
	Priority            model.MaintenancePriority
	Notes               string
	Cost                float64
}

// Patch is a partial update. Nil fields are left unchanged. Completion goes
// through Complete.
type Patch struct {
	Title               *string
	Type                *model.MaintenanceType
	Description         *string
	ScheduledDate       *time.Time
	EstimatedDuration   *float64
	RequiredParts       *[]string
	AssignedTechnicians *[]uint
	Status              *model.MaintenanceStatus
	Priority            *model.MaintenancePriority
	Notes               *string
	Cost                *float64
}

type CompleteInput struct {
	CompletedDate  *time.Time
	ActualDuration *float64
	Notes          *string
}

type ListQuery struct {
	MachineID uint
	Status    string
	Page      int
	Limit     int
}

func (s *Service) List(ctx context.Context, actor policy.Actor, q ListQuery) (*store.Page[model.Maintenance], error) {
	if err := policy.Evaluate(actor, policy.MaintenanceList, nil); err != nil {
		return nil, err
	}
	status := model.MaintenanceStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid status filter %q", q.Status)
	}
	return s.store.ListMaintenance(ctx, store.MaintenanceQuery{
		MachineID:  q.MachineID,
		Status:     status,
		Pagination: store.Pagination{Page: q.Page, Limit: q.Limit},
	})
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id uint) (*model.Maintenance, error) {
	if err := policy.Evaluate(actor, policy.MaintenanceView, nil); err != nil {
		return nil, err
	}
	return s.store.GetMaintenance(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (*model.Maintenance, error) {
	if err := policy.Evaluate(actor, policy.MaintenanceCreate, nil); err != nil {
		return nil, err
	}

	m := &model.Maintenance{
		Title:               strings.TrimSpace(in.Title),
		MachineID:           in.MachineID,
		Type:                in.Type,
		Description:         strings.TrimSpace(in.Description),
		ScheduledDate:       in.ScheduledDate,
		EstimatedDuration:   in.EstimatedDuration,
		RequiredParts:       in.RequiredParts,
		AssignedTechnicians: in.AssignedTechnicians,
		Status:              model.MaintenanceScheduled,
		Priority:            in.Priority,
		CreatedByID:         actor.ID,
		Notes:               strings.TrimSpace(in.Notes),
		Cost:                in.Cost,
	}
	if m.Type == "" {
		m.Type = model.MaintenancePreventive
	}
	if m.Priority == "" {
		m.Priority = model.MaintenanceMedium
	}
	if m.RequiredParts == nil {
		m.RequiredParts = []string{}
	}
	if m.AssignedTechnicians == nil {
		m.AssignedTechnicians = []uint{}
	}
	if err := validate(m); err != nil {
		return nil, err
	}

	if _, err := s.store.GetMachine(ctx, m.MachineID); err != nil {
		return nil, err
	}
	if err := s.checkTechnicians(ctx, m.AssignedTechnicians); err != nil {
		return nil, err
	}

	if err := s.store.CreateMaintenance(ctx, m); err != nil {
		return nil, err
	}
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().
		Uint("maintenance_id", m.ID).Uint("machine_id", m.MachineID).Time("scheduled", m.ScheduledDate).
		Msg("maintenance scheduled")
	return s.store.GetMaintenance(ctx, m.ID)
}

func (s *Service) Update(ctx context.Context, actor policy.Actor, id uint, p Patch) (*model.Maintenance, error) {
	if err := policy.Evaluate(actor, policy.MaintenanceUpdate, nil); err != nil {
		return nil, err
	}
	m, err := s.store.GetMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		m.Title = strings.TrimSpace(*p.Title)
	}
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Description != nil {
		m.Description = strings.TrimSpace(*p.Description)
	}
	if p.ScheduledDate != nil {
		m.ScheduledDate = *p.ScheduledDate
	}
	if p.EstimatedDuration != nil {
		m.EstimatedDuration = *p.EstimatedDuration
	}
	if p.RequiredParts != nil {
		m.RequiredParts = *p.RequiredParts
	}
	if p.AssignedTechnicians != nil {
		if err := s.checkTechnicians(ctx, *p.AssignedTechnicians); err != nil {
			return nil, err
		}
		m.AssignedTechnicians = *p.AssignedTechnicians
	}
	if p.Status != nil {
		if *p.Status == model.MaintenanceCompleted && m.Status != model.MaintenanceCompleted {
			return nil, apperr.Validation("use the complete operation to finish maintenance")
		}
		m.Status = *p.Status
	}
	if p.Priority != nil {
		m.Priority = *p.Priority
	}
	if p.Notes != nil {
		m.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Cost != nil {
		m.Cost = *p.Cost
	}
	if err := validate(m); err != nil {
		return nil, err
	}

	clearAssociations(m)
	if err := s.store.SaveMaintenance(ctx, m); err != nil {
		return nil, err
	}
	return s.store.GetMaintenance(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Evaluate(actor, policy.MaintenanceDelete, nil); err != nil {
		return err
	}
	return s.store.DeleteMaintenance(ctx, id)
}

// Complete closes the job and restarts the machine's schedule at the
// completion date. A machine held in maintenance goes back to operational.
func (s *Service) Complete(ctx context.Context, actor policy.Actor, id uint, in CompleteInput) (*model.Maintenance, error) {
	if err := policy.Evaluate(actor, policy.MaintenanceComplete, nil); err != nil {
		return nil, err
	}
	if in.ActualDuration != nil && *in.ActualDuration < 0 {
		return nil, apperr.Validation("actualDuration cannot be negative")
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		m, err := tx.GetMaintenance(ctx, id)
		if err != nil {
			return err
		}
		switch m.Status {
		case model.MaintenanceCompleted:
			return apperr.Validation("maintenance is already completed")
		case model.MaintenanceCancelled:
			return apperr.Validation("cancelled maintenance cannot be completed")
		}

		completedAt := s.now()
		if in.CompletedDate != nil {
			completedAt = *in.CompletedDate
		}
		completer := actor.ID
		m.Status = model.MaintenanceCompleted
		m.CompletedDate = &completedAt
		m.CompletedByID = &completer
		if in.ActualDuration != nil {
			m.ActualDuration = in.ActualDuration
		}
		if in.Notes != nil {
			m.Notes = strings.TrimSpace(*in.Notes)
		}
		clearAssociations(m)
		if err := tx.SaveMaintenance(ctx, m); err != nil {
			return err
		}

		machine, err := tx.GetMachineForUpdate(ctx, m.MachineID)
		if err != nil {
			return err
		}
		dates := schedule.OnMaintenanceCompleted(completedAt, machine.MaintenanceInterval)
		machine.LastMaintenance, machine.NextScheduledMaintenance = dates.Last, dates.Next
		if err := tx.SaveMachine(ctx, machine); err != nil {
			return err
		}

		if machine.Status != model.MachineMaintenance {
			return nil
		}
		swapped, err := tx.CompareAndSwapMachineStatus(ctx, machine.ID, model.MachineMaintenance, model.MachineOperational)
		if err != nil {
			return err
		}
		if swapped {
			metrics.MachineStatusChanged(string(model.MachineMaintenance), string(model.MachineOperational), metrics.ReasonMaintenance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Uint("maintenance_id", id).Uint("by", actor.ID).Msg("maintenance completed")
	return s.store.GetMaintenance(ctx, id)
}

func (s *Service) checkTechnicians(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func validate(m *model.Maintenance) error {
	switch {
	case m.Title == "":
		return apperr.Validation("title is required")
	case m.Description == "":
		return apperr.Validation("description is required")
	case m.MachineID == 0:
		return apperr.Validation("machineId is required")
	case m.ScheduledDate.IsZero():
		return apperr.Validation("scheduledDate is required")
	case m.EstimatedDuration <= 0:
		return apperr.Validation("estimatedDuration must be positive")
	case m.Cost < 0:
		return apperr.Validation("cost cannot be negative")
	case !m.Type.Valid():
		return apperr.Validation("invalid maintenanceType %q", m.Type)
	case !m.Status.Valid():
		return apperr.Validation("invalid status %q", m.Status)
	case !m.Priority.Valid():
		return apperr.Validation("invalid priority %q", m.Priority)
	}
	return nil
}

func clearAssociations(m *model.Maintenance) {
	m.Machine = nil
	m.CreatedBy = nil
	m.CompletedBy = nil
}
