package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(model.Models()...))
	return NewGormStore(gdb)
}

func mustUser(t *testing.T, s Store, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Role: role, IsActive: true, Password: "x"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mustMachine(t *testing.T, s Store, serial string, status model.MachineStatus) *model.Machine {
	t.Helper()
	m := &model.Machine{
		Name: "Laser Cutter " + serial, Model: "LC-2000", SerialNumber: serial, Location: "Hall A",
		Status: status, MaintenanceInterval: 90, Metrics: model.DefaultMetrics(),
	}
	require.NoError(t, s.CreateMachine(context.Background(), m))
	return m
}

func mustAlert(t *testing.T, s Store, a model.Alert) *model.Alert {
	t.Helper()
	if a.Status == "" {
		a.Status = model.AlertOpen
	}
	if a.Priority == "" {
		a.Priority = model.PriorityMedium
	}
	if a.Description == "" {
		a.Description = "observed on the floor"
	}
	require.NoError(t, s.CreateAlert(context.Background(), &a))
	return &a
}

func TestListAlerts_FiltersAndScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := mustUser(t, s, "alice", model.RoleUser)
	bob := mustUser(t, s, "bob", model.RoleUser)
	tech := mustUser(t, s, "tech", model.RoleTechnician)
	m1 := mustMachine(t, s, "S1", model.MachineOperational)
	m2 := mustMachine(t, s, "S2", model.MachineOperational)

	mustAlert(t, s, model.Alert{Title: "Spindle overheating", MachineID: m1.ID, CreatedByID: alice.ID, Priority: model.PriorityCritical})
	mustAlert(t, s, model.Alert{Title: "Belt noise", MachineID: m1.ID, CreatedByID: bob.ID, Status: model.AlertAssigned, AssignedToID: &tech.ID})
	mustAlert(t, s, model.Alert{Title: "Coolant low", Description: "100% empty_tank", MachineID: m2.ID, CreatedByID: bob.ID, Status: model.AlertInProgress})
	mustAlert(t, s, model.Alert{Title: "Door sensor", MachineID: m2.ID, CreatedByID: alice.ID, Status: model.AlertResolved})

	list := func(q AlertQuery) []string {
		t.Helper()
		page, err := s.ListAlerts(ctx, q)
		require.NoError(t, err)
		titles := make([]string, len(page.Items))
		for i, a := range page.Items {
			titles[i] = a.Title
		}
		return titles
	}

	assert.Len(t, list(AlertQuery{}), 4)
	assert.Equal(t, []string{"Spindle overheating"}, list(AlertQuery{Priority: model.PriorityCritical}))
	assert.ElementsMatch(t, []string{"Coolant low", "Door sensor"}, list(AlertQuery{MachineID: m2.ID}))
	assert.Equal(t, []string{"Belt noise"}, list(AlertQuery{Status: model.AlertAssigned}))

	t.Run("search is case insensitive over title and description", func(t *testing.T) {
		assert.Equal(t, []string{"Spindle overheating"}, list(AlertQuery{Search: "SPINDLE"}))
		assert.Equal(t, []string{"Coolant low"}, list(AlertQuery{Search: "empty_tank"}))
	})

	t.Run("wildcards in the search term are literal", func(t *testing.T) {
		assert.Equal(t, []string{"Coolant low"}, list(AlertQuery{Search: "100%"}))
		assert.Empty(t, list(AlertQuery{Search: "%nothing"}))
		assert.Empty(t, list(AlertQuery{Search: "_oor"}))
	})

	t.Run("creator scope", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"Spindle overheating", "Door sensor"}, list(AlertQuery{CreatedBy: alice.ID}))
	})

	t.Run("assigned or open scope composes with filters", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"Spindle overheating", "Belt noise"}, list(AlertQuery{AssignedOrOpenFor: tech.ID}))
		assert.Equal(t, []string{"Belt noise"}, list(AlertQuery{AssignedOrOpenFor: tech.ID, Status: model.AlertAssigned}))
		assert.Empty(t, list(AlertQuery{AssignedOrOpenFor: tech.ID, MachineID: m2.ID}))
	})
}

func TestListAlerts_Pagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineOperational)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		mustAlert(t, s, model.Alert{
			Title: fmt.Sprintf("alert %02d", i), MachineID: m.ID, CreatedByID: u.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := s.ListAlerts(ctx, AlertQuery{Pagination: Pagination{Page: 2, Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, int64(15), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "alert 04", page.Items[0].Title)
	assert.Equal(t, "alert 00", page.Items[4].Title)

	first, err := s.ListAlerts(ctx, AlertQuery{Pagination: Pagination{Page: 0, Limit: -1}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 10, first.Limit)
	assert.Equal(t, "alert 14", first.Items[0].Title)
	require.NotNil(t, first.Items[0].Machine)
	assert.Equal(t, m.Name, first.Items[0].Machine.Name)
	require.NotNil(t, first.Items[0].CreatedBy)
	assert.Equal(t, "alice", first.Items[0].CreatedBy.Name)
}

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Pagination
		want Pagination
	}{
		{"defaults", Pagination{}, Pagination{Page: DefaultPage, Limit: DefaultLimit}},
		{"negative", Pagination{Page: -3, Limit: -1}, Pagination{Page: DefaultPage, Limit: DefaultLimit}},
		{"kept", Pagination{Page: 4, Limit: 25}, Pagination{Page: 4, Limit: 25}},
		{"limit capped", Pagination{Page: 1, Limit: 1_000_000_000_000}, Pagination{Page: 1, Limit: MaxLimit}},
		{"page capped", Pagination{Page: math.MaxInt, Limit: MaxLimit}, Pagination{Page: math.MaxInt/MaxLimit + 1, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.offset(), 0)
		})
	}
}

func TestListAlerts_HugeWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineOperational)
	mustAlert(t, s, model.Alert{Title: "only", MachineID: m.ID, CreatedByID: u.ID})

	page, err := s.ListAlerts(ctx, AlertQuery{Pagination: Pagination{Page: 1, Limit: 1_000_000_000_000}})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
	assert.Len(t, page.Items, 1)

	page, err = s.ListAlerts(ctx, AlertQuery{Pagination: Pagination{Page: math.MaxInt, Limit: 1_000_000_000_000}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestCountOutstandingCritical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineError)
	other := mustMachine(t, s, "S2", model.MachineError)

	a1 := mustAlert(t, s, model.Alert{Title: "a1", MachineID: m.ID, CreatedByID: u.ID, Priority: model.PriorityCritical})
	mustAlert(t, s, model.Alert{Title: "a2", MachineID: m.ID, CreatedByID: u.ID, Priority: model.PriorityCritical, Status: model.AlertInProgress})
	mustAlert(t, s, model.Alert{Title: "done", MachineID: m.ID, CreatedByID: u.ID, Priority: model.PriorityCritical, Status: model.AlertClosed})
	mustAlert(t, s, model.Alert{Title: "minor", MachineID: m.ID, CreatedByID: u.ID, Priority: model.PriorityLow})
	mustAlert(t, s, model.Alert{Title: "elsewhere", MachineID: other.ID, CreatedByID: u.ID, Priority: model.PriorityCritical})

	n, err := s.CountOutstandingCritical(ctx, m.ID, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.CountOutstandingCritical(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMachines_CASAndLocking(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := mustMachine(t, s, "S1", model.MachineOperational)

	swapped, err := s.CompareAndSwapMachineStatus(ctx, m.ID, model.MachineOperational, model.MachineError)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.CompareAndSwapMachineStatus(ctx, m.ID, model.MachineOperational, model.MachineError)
	require.NoError(t, err)
	assert.False(t, swapped)

	err = s.Transaction(ctx, func(tx Store) error {
		locked, err := tx.GetMachineForUpdate(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, model.MachineError, locked.Status)
		return nil
	})
	require.NoError(t, err)

	_, err = s.GetMachineForUpdate(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineOperational)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateAlert(ctx, &model.Alert{Title: "t", Description: "d", MachineID: m.ID, CreatedByID: u.ID, Status: model.AlertOpen, Priority: model.PriorityCritical}))
		if _, err := tx.CompareAndSwapMachineStatus(ctx, m.ID, model.MachineOperational, model.MachineError); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := s.GetMachine(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MachineOperational, reloaded.Status)
	page, err := s.ListAlerts(ctx, AlertQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestMachines_SerialAndDue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := mustMachine(t, s, "S1", model.MachineOperational)

	taken, err := s.SerialNumberTaken(ctx, "S1", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = s.SerialNumberTaken(ctx, "S1", m.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	m.NextScheduledMaintenance = now.AddDate(0, 0, -1)
	require.NoError(t, s.SaveMachine(ctx, m))
	later := mustMachine(t, s, "S2", model.MachineOperational)
	later.NextScheduledMaintenance = now.AddDate(0, 0, 5)
	require.NoError(t, s.SaveMachine(ctx, later))
	off := mustMachine(t, s, "S3", model.MachineOffline)
	off.NextScheduledMaintenance = now.AddDate(0, 0, -3)
	require.NoError(t, s.SaveMachine(ctx, off))

	due, err := s.ListMachinesDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "S1", due[0].SerialNumber)
}

func TestDeleteMachine_RemovesDependents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineOperational)
	keep := mustMachine(t, s, "S2", model.MachineOperational)
	mustAlert(t, s, model.Alert{Title: "gone", MachineID: m.ID, CreatedByID: u.ID})
	mustAlert(t, s, model.Alert{Title: "kept", MachineID: keep.ID, CreatedByID: u.ID})
	require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", P256DH: "k", Auth: "a"}, []uint{m.ID, keep.ID}))

	require.NoError(t, s.DeleteMachine(ctx, m.ID))

	page, err := s.ListAlerts(ctx, AlertQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "kept", page.Items[0].Title)

	sub, err := s.GetSubscription(ctx, "https://push/1")
	require.NoError(t, err)
	require.Len(t, sub.Machines, 1)
	assert.Equal(t, keep.ID, sub.Machines[0].ID)

	assert.True(t, errors.Is(s.DeleteMachine(ctx, m.ID), apperr.ErrNotFound))
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m1 := mustMachine(t, s, "S1", model.MachineOperational)
	m2 := mustMachine(t, s, "S2", model.MachineOperational)

	sub := &model.PushSubscription{Endpoint: "https://push/1", P256DH: "k1", Auth: "a1", UserID: 4}
	require.NoError(t, s.PutSubscription(ctx, sub, []uint{m1.ID}))

	// replacing the key material and the machine set
	require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", P256DH: "k2", Auth: "a2", UserID: 4}, []uint{m2.ID}))

	got, err := s.GetSubscription(ctx, "https://push/1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)
	require.Len(t, got.Machines, 1)
	assert.Equal(t, m2.ID, got.Machines[0].ID)

	subs, err := s.SubscriptionsForMachine(ctx, m1.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	subs, err = s.SubscriptionsForMachine(ctx, m2.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push/1"))
	_, err = s.GetSubscription(ctx, "https://push/1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tech := mustUser(t, s, "tech", model.RoleTechnician)
	u := mustUser(t, s, "alice", model.RoleUser)
	m := mustMachine(t, s, "S1", model.MachineOperational)
	a := mustAlert(t, s, model.Alert{Title: "t", MachineID: m.ID, CreatedByID: u.ID, Status: model.AlertAssigned, AssignedToID: &tech.ID})

	byEmail, err := s.GetUserByEmail(ctx, "  TECH@example.com ")
	require.NoError(t, err)
	assert.Equal(t, tech.ID, byEmail.ID)

	taken, err := s.EmailTaken(ctx, "alice@example.com", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	active := true
	page, err := s.ListUsers(ctx, UserQuery{Role: model.RoleTechnician, IsActive: &active})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "tech", page.Items[0].Name)

	require.NoError(t, s.DeleteUser(ctx, tech.ID))
	reloaded, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.AssignedToID)
	assert.True(t, errors.Is(s.DeleteUser(ctx, tech.ID), apperr.ErrNotFound))
}
