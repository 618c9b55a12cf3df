package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
)

func ptr(v uint) *uint { return &v }

func TestEvaluate(t *testing.T) {
	admin := Actor{ID: 1, Role: model.RoleAdmin}
	tech := Actor{ID: 2, Role: model.RoleTechnician}
	user := Actor{ID: 3, Role: model.RoleUser}
	other := Actor{ID: 4, Role: model.RoleUser}

	ownAlert := &Record{CreatorID: 3}
	assignedToOther := &Record{CreatorID: 9, AssigneeID: ptr(4)}

	testCases := []struct {
		name    string
		actor   Actor
		op      Op
		rec     *Record
		allowed bool
	}{
		{"anyone lists alerts", user, AlertList, nil, true},
		{"anyone creates alerts", user, AlertCreate, nil, true},
		{"creator views", user, AlertView, ownAlert, true},
		{"stranger cannot view", other, AlertView, ownAlert, false},
		{"assignee views", other, AlertView, assignedToOther, true},
		{"assignee updates", other, AlertUpdate, assignedToOther, true},
		{"stranger cannot update", user, AlertUpdate, assignedToOther, false},
		{"technician views any", tech, AlertView, ownAlert, true},
		{"admin updates any", admin, AlertUpdate, assignedToOther, true},
		{"user cannot assign self", user, AlertAssignSelf, ownAlert, false},
		{"technician assigns self", tech, AlertAssignSelf, nil, true},
		{"creator cannot delete", user, AlertDelete, ownAlert, false},
		{"technician cannot delete", tech, AlertDelete, nil, false},
		{"admin deletes", admin, AlertDelete, nil, true},

		{"user lists machines", user, MachineList, nil, true},
		{"user cannot create machine", user, MachineCreate, nil, false},
		{"technician sets status", tech, MachineStatus, nil, true},
		{"technician updates metrics", tech, MachineMetrics, nil, true},
		{"technician cannot delete machine", tech, MachineDelete, nil, false},
		{"admin deletes machine", admin, MachineDelete, nil, true},

		{"technician cannot list users", tech, UserList, nil, false},
		{"admin lists users", admin, UserList, nil, true},
		{"admin deletes other user", admin, UserDelete, &Record{SubjectUserID: 3}, true},
		{"admin cannot delete self", admin, UserDelete, &Record{SubjectUserID: 1}, false},

		{"user lists maintenance", user, MaintenanceList, nil, true},
		{"technician completes maintenance", tech, MaintenanceComplete, nil, true},
		{"user cannot schedule maintenance", user, MaintenanceCreate, nil, false},
		{"technician cannot delete maintenance", tech, MaintenanceDelete, nil, false},

		{"unknown op denied", admin, Op("report:generate"), nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Evaluate(tc.actor, tc.op, tc.rec)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrForbidden), "expected forbidden, got %v", err)
		})
	}
}

func TestRolesFor(t *testing.T) {
	assert.ElementsMatch(t, []model.Role{model.RoleTechnician, model.RoleAdmin}, RolesFor(MachineCreate))
	assert.Empty(t, RolesFor(Op("nope")))
}
