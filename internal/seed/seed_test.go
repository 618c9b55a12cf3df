package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/store"
	"shopfloor-ops-backend/internal/store/storetest"
)

var all = store.Pagination{Page: 1, Limit: 100}

func count(t *testing.T, s store.Store) (users, machines, alerts, records int64) {
	t.Helper()
	ctx := context.Background()
	u, err := s.ListUsers(ctx, store.UserQuery{Pagination: all})
	require.NoError(t, err)
	m, err := s.ListMachines(ctx, store.MachineQuery{Pagination: all})
	require.NoError(t, err)
	a, err := s.ListAlerts(ctx, store.AlertQuery{Pagination: all})
	require.NoError(t, err)
	r, err := s.ListMaintenance(ctx, store.MaintenanceQuery{Pagination: all})
	require.NoError(t, err)
	return u.Total, m.Total, a.Total, r.Total
}

func TestImportIsRepeatable(t *testing.T) {
	s, db := storetest.New(t)
	storetest.User(t, s, "leftover", model.RoleUser)

	for i := 0; i < 2; i++ {
		require.NoError(t, Import(context.Background(), db))
		users, machines, alerts, records := count(t, s)
		assert.Equal(t, int64(3), users)
		assert.Equal(t, int64(3), machines)
		assert.Equal(t, int64(3), alerts)
		assert.Equal(t, int64(2), records)
	}

	admin, err := s.GetUserByEmail(context.Background(), AdminEmail)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.True(t, admin.CheckPassword(AdminPassword))

	_, err = s.GetUserByEmail(context.Background(), "leftover@example.com")
	assert.Error(t, err)
}

func TestDestroy(t *testing.T) {
	s, db := storetest.New(t)
	require.NoError(t, Import(context.Background(), db))
	require.NoError(t, Destroy(context.Background(), db))

	users, machines, alerts, records := count(t, s)
	assert.Zero(t, users)
	assert.Zero(t, machines)
	assert.Zero(t, alerts)
	assert.Zero(t, records)
}
