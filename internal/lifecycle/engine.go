// Package lifecycle implements the alert state machine and its coupling to
// machine status.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/metrics"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/notification"
	"shopfloor-ops-backend/internal/policy"
	"shopfloor-ops-backend/internal/store"
)

// Dispatcher queues a notice for asynchronous delivery.
type Dispatcher interface {
	Dispatch(n notification.Notice) bool
}

type Options struct {
	// Strict rejects status changes that are not declared forward transitions.
	Strict     bool
	Dispatcher Dispatcher
	Now        func() time.Time
}

// Engine owns every write to alerts.
type Engine struct {
	store    store.Store
	strict   bool
	dispatch Dispatcher
	now      func() time.Time
}

func New(s store.Store, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: s, strict: opts.Strict, dispatch: opts.Dispatcher, now: now}
}

type CreateInput struct {
	Title       string
	Description string
	MachineID   uint
	Priority    model.AlertPriority
	Photos      []string
}

// Patch is a partial alert update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Priority    *model.AlertPriority
	Status      *model.AlertStatus
	AssignedTo  *uint
}

type ListQuery struct {
	Status    string
	Priority  string
	MachineID uint
	Search    string
	Page      int
	Limit     int
}

func record(a *model.Alert) *policy.Record {
	return &policy.Record{CreatorID: a.CreatedByID, AssigneeID: a.AssignedToID}
}

// Create raises a new open alert. A critical alert flips an operational
// machine to error in the same transaction.
func (e *Engine) Create(ctx context.Context, actor policy.Actor, in CreateInput) (*model.Alert, error) {
	if err := policy.Evaluate(actor, policy.AlertCreate, nil); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	if in.MachineID == 0 {
		return nil, apperr.Validation("machineId is required")
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", in.Priority)
	}
	if in.Photos == nil {
		in.Photos = []string{}
	}

	alert := &model.Alert{
		Title:       in.Title,
		Description: in.Description,
		MachineID:   in.MachineID,
		Priority:    in.Priority,
		Status:      model.AlertOpen,
		CreatedByID: actor.ID,
		Photos:      in.Photos,
	}

	var machine *model.Machine
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		machine, err = tx.GetMachineForUpdate(ctx, in.MachineID)
		if err != nil {
			return err
		}
		if err := tx.CreateAlert(ctx, alert); err != nil {
			return err
		}
		if alert.Priority == model.PriorityCritical && machine.Status == model.MachineOperational {
			return e.swapMachineStatus(ctx, tx, machine, model.MachineOperational, model.MachineError, metrics.ReasonCriticalAlert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AlertsCreated.WithLabelValues(string(alert.Priority)).Inc()
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().
		Uint("alert_id", alert.ID).Uint("machine_id", alert.MachineID).Str("priority", string(alert.Priority)).
		Msg("alert created")

	if alert.Priority == model.PriorityCritical {
		e.notify(notification.Notice{
			Kind:        notification.KindCriticalAlert,
			MachineID:   machine.ID,
			MachineName: machine.Name,
			Location:    machine.Location,
			AlertID:     alert.ID,
			Title:       alert.Title,
			Priority:    string(alert.Priority),
		})
	}

	return e.store.GetAlert(ctx, alert.ID)
}

// Update applies a patch. Explicit status changes and their resolution side
// effects run first, then assignment with the open -> assigned promotion.
func (e *Engine) Update(ctx context.Context, actor policy.Actor, id uint, patch Patch) (*model.Alert, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Evaluate(actor, policy.AlertUpdate, record(alert)); err != nil {
			return err
		}
		if patch.AssignedTo != nil {
			if _, err := tx.GetUser(ctx, *patch.AssignedTo); err != nil {
				return err
			}
		}

		if patch.Title != nil {
			alert.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			alert.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Priority != nil {
			alert.Priority = *patch.Priority
		}

		from := alert.Status

		if patch.Status != nil && *patch.Status != alert.Status {
			if e.strict {
				if err := checkTransition(alert.Status, *patch.Status); err != nil {
					return err
				}
			}
			alert.Status = *patch.Status

			switch alert.Status {
			case model.AlertResolved:
				now := e.now()
				alert.ResolvedAt = &now
				resolver := actor.ID
				alert.ResolvedByID = &resolver
				if err := e.releaseMachine(ctx, tx, alert); err != nil {
					return err
				}
			case model.AlertAssigned:
				if patch.AssignedTo != nil {
					assignee := *patch.AssignedTo
					alert.AssignedToID = &assignee
				}
			}
		}

		if patch.AssignedTo != nil && (alert.AssignedToID == nil || *alert.AssignedToID != *patch.AssignedTo) {
			assignee := *patch.AssignedTo
			alert.AssignedToID = &assignee
			if alert.Status == model.AlertOpen {
				alert.Status = model.AlertAssigned
			}
		}

		// associations were loaded for display and must not be rewritten
		clearAssociations(alert)
		if err := tx.SaveAlert(ctx, alert); err != nil {
			return err
		}
		if alert.Status != from {
			metrics.AlertTransitions.WithLabelValues(string(from), string(alert.Status)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.store.GetAlert(ctx, id)
}

// AssignToSelf assigns the alert to the caller and sets it to assigned
// whatever its current status, including resolved or closed.
func (e *Engine) AssignToSelf(ctx context.Context, actor policy.Actor, id uint) (*model.Alert, error) {
	if err := policy.Evaluate(actor, policy.AlertAssignSelf, nil); err != nil {
		return nil, err
	}

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		from := alert.Status
		assignee := actor.ID
		alert.AssignedToID = &assignee
		alert.Status = model.AlertAssigned

		clearAssociations(alert)
		if err := tx.SaveAlert(ctx, alert); err != nil {
			return err
		}
		if from != alert.Status {
			metrics.AlertTransitions.WithLabelValues(string(from), string(alert.Status)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetAlert(ctx, id)
}

// Delete removes an alert permanently. Machine status is not touched.
func (e *Engine) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Evaluate(actor, policy.AlertDelete, nil); err != nil {
		return err
	}
	return e.store.DeleteAlert(ctx, id)
}

// Get returns an alert the actor may view. A missing alert is reported
// before any authorization decision.
func (e *Engine) Get(ctx context.Context, actor policy.Actor, id uint) (*model.Alert, error) {
	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Evaluate(actor, policy.AlertView, record(alert)); err != nil {
		return nil, err
	}
	return alert, nil
}

// List returns the page of alerts visible to actor matching q.
func (e *Engine) List(ctx context.Context, actor policy.Actor, q ListQuery) (*store.Page[model.Alert], error) {
	if err := policy.Evaluate(actor, policy.AlertList, nil); err != nil {
		return nil, err
	}

	sq := store.AlertQuery{
		Status:     model.AlertStatus(q.Status),
		Priority:   model.AlertPriority(q.Priority),
		MachineID:  q.MachineID,
		Search:     q.Search,
		Pagination: store.Pagination{Page: q.Page, Limit: q.Limit},
	}
	if sq.Status != "" && !sq.Status.Valid() {
		return nil, apperr.Validation("invalid status filter %q", q.Status)
	}
	if sq.Priority != "" && !sq.Priority.Valid() {
		return nil, apperr.Validation("invalid priority filter %q", q.Priority)
	}

	switch actor.Role {
	case model.RoleTechnician:
		sq.AssignedOrOpenFor = actor.ID
	case model.RoleUser:
		sq.CreatedBy = actor.ID
	}

	return e.store.ListAlerts(ctx, sq)
}

// releaseMachine returns an errored machine to operational once no other
// critical alert on it is outstanding.
func (e *Engine) releaseMachine(ctx context.Context, tx store.Store, alert *model.Alert) error {
	machine, err := tx.GetMachineForUpdate(ctx, alert.MachineID)
	if err != nil {
		return err
	}
	if machine.Status != model.MachineError {
		return nil
	}
	remaining, err := tx.CountOutstandingCritical(ctx, machine.ID, alert.ID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return e.swapMachineStatus(ctx, tx, machine, model.MachineError, model.MachineOperational, metrics.ReasonAlertsCleared)
}

func (e *Engine) swapMachineStatus(ctx context.Context, tx store.Store, machine *model.Machine, from, to model.MachineStatus, reason string) error {
	swapped, err := tx.CompareAndSwapMachineStatus(ctx, machine.ID, from, to)
	if err != nil {
		return err
	}
	if !swapped {
		return nil
	}
	machine.Status = to
	metrics.MachineStatusChanged(string(from), string(to), reason)
	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().
		Uint("machine_id", machine.ID).Str("from", string(from)).Str("to", string(to)).Str("reason", reason).
		Msg("machine status changed")
	return nil
}

func (e *Engine) notify(n notification.Notice) {
	if e.dispatch == nil {
		return
	}
	e.dispatch.Dispatch(n)
}

func validatePatch(p Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.Validation("title cannot be empty")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return apperr.Validation("description cannot be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.Validation("invalid priority %q", *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validation("invalid status %q", *p.Status)
	}
	if p.AssignedTo != nil && *p.AssignedTo == 0 {
		return apperr.Validation("assignedTo must reference a user")
	}
	return nil
}

func clearAssociations(a *model.Alert) {
	a.Machine = nil
	a.CreatedBy = nil
	a.AssignedTo = nil
	a.ResolvedBy = nil
}
