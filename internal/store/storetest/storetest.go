// Package storetest opens throwaway SQLite backed stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopfloor-ops-backend/internal/db"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/store"
)

// New returns a migrated in-memory store and the underlying connection.
func New(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return store.NewGormStore(gdb), gdb
}

// User creates an active account with the given role. The password is the
// name followed by "-pass".
func User(t *testing.T, s store.Store, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Role: role, IsActive: true}
	require.NoError(t, u.SetPassword(name+"-pass"))
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// Machine creates a machine with a 90 day interval.
func Machine(t *testing.T, s store.Store, serial string, status model.MachineStatus) *model.Machine {
	t.Helper()
	m := &model.Machine{
		Name:                "Machine " + serial,
		Model:               "LC-2000",
		SerialNumber:        serial,
		Location:            "Hall A",
		Status:              status,
		MaintenanceInterval: 90,
		Metrics:             model.DefaultMetrics(),
	}
	require.NoError(t, s.CreateMachine(context.Background(), m))
	return m
}
