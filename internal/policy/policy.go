// Package policy decides whether an actor may perform an operation.
package policy

import (
	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   uint
	Role model.Role
}

type Op string

const (
	AlertList       Op = "alert:list"
	AlertView       Op = "alert:view"
	AlertCreate     Op = "alert:create"
	AlertUpdate     Op = "alert:update"
	AlertAssignSelf Op = "alert:assign_self"
	AlertDelete     Op = "alert:delete"

	MachineList    Op = "machine:list"
	MachineView    Op = "machine:view"
	MachineCreate  Op = "machine:create"
	MachineUpdate  Op = "machine:update"
	MachineStatus  Op = "machine:status"
	MachineMetrics Op = "machine:metrics"
	MachineDelete  Op = "machine:delete"

	UserList   Op = "user:list"
	UserView   Op = "user:view"
	UserCreate Op = "user:create"
	UserUpdate Op = "user:update"
	UserDelete Op = "user:delete"

	MaintenanceList     Op = "maintenance:list"
	MaintenanceView     Op = "maintenance:view"
	MaintenanceCreate   Op = "maintenance:create"
	MaintenanceUpdate   Op = "maintenance:update"
	MaintenanceComplete Op = "maintenance:complete"
	MaintenanceDelete   Op = "maintenance:delete"
)

// Record describes the target of a record level check. Zero values mean
// "not applicable".
type Record struct {
	CreatorID  uint
	AssigneeID *uint
	// SubjectUserID is the account a user:* operation targets.
	SubjectUserID uint
}

var (
	everyone = []model.Role{model.RoleUser, model.RoleTechnician, model.RoleAdmin}
	staff    = []model.Role{model.RoleTechnician, model.RoleAdmin}
	admins   = []model.Role{model.RoleAdmin}
)

var roleTable = map[Op][]model.Role{
	AlertList:       everyone,
	AlertView:       staff,
	AlertCreate:     everyone,
	AlertUpdate:     staff,
	AlertAssignSelf: staff,
	AlertDelete:     admins,

	MachineList:    everyone,
	MachineView:    everyone,
	MachineCreate:  staff,
	MachineUpdate:  staff,
	MachineStatus:  staff,
	MachineMetrics: staff,
	MachineDelete:  admins,

	UserList:   admins,
	UserView:   admins,
	UserCreate: admins,
	UserUpdate: admins,
	UserDelete: admins,

	MaintenanceList:     everyone,
	MaintenanceView:     everyone,
	MaintenanceCreate:   staff,
	MaintenanceUpdate:   staff,
	MaintenanceComplete: staff,
	MaintenanceDelete:   admins,
}

// ops that the record's creator or assignee may perform regardless of role
var participantOps = map[Op]bool{
	AlertView:   true,
	AlertUpdate: true,
}

// Evaluate returns nil when actor may perform op on rec, or a Forbidden error.
// rec may be nil for operations without a target record.
func Evaluate(actor Actor, op Op, rec *Record) error {
	if op == UserDelete && rec != nil && rec.SubjectUserID == actor.ID {
		return apperr.Forbidden("you cannot delete your own account")
	}

	if hasRole(actor.Role, roleTable[op]) {
		return nil
	}

	if participantOps[op] && rec != nil && isParticipant(actor, rec) {
		return nil
	}

	return apperr.Forbidden("not authorized to perform %s", op)
}

// RolesFor lists the roles allowed to perform op without a record level grant.
func RolesFor(op Op) []model.Role {
	return roleTable[op]
}

func isParticipant(actor Actor, rec *Record) bool {
	if rec.CreatorID != 0 && rec.CreatorID == actor.ID {
		return true
	}
	return rec.AssigneeID != nil && *rec.AssigneeID == actor.ID
}

func hasRole(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
