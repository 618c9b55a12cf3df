package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Transaction runs fn against a Store bound to a single database
	// transaction. Only the tx argument may be used inside fn.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	ListUsers(ctx context.Context, q UserQuery) (*Page[model.User], error)
	SaveUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id uint) error

	CreateMachine(ctx context.Context, m *model.Machine) error
	GetMachine(ctx context.Context, id uint) (*model.Machine, error)
	// GetMachineForUpdate reads a machine and holds a row lock until the
	// surrounding transaction ends.
	GetMachineForUpdate(ctx context.Context, id uint) (*model.Machine, error)
	SerialNumberTaken(ctx context.Context, serial string, excludeID uint) (bool, error)
	ListMachines(ctx context.Context, q MachineQuery) (*Page[model.Machine], error)
	ListMachinesDue(ctx context.Context, before time.Time) ([]model.Machine, error)
	SaveMachine(ctx context.Context, m *model.Machine) error
	// CompareAndSwapMachineStatus sets the status only if it still equals from.
	CompareAndSwapMachineStatus(ctx context.Context, id uint, from, to model.MachineStatus) (bool, error)
	DeleteMachine(ctx context.Context, id uint) error

	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id uint) (*model.Alert, error)
	ListAlerts(ctx context.Context, q AlertQuery) (*Page[model.Alert], error)
	// CountOutstandingCritical counts critical, not yet resolved or closed
	// alerts on a machine, ignoring excludeID.
	CountOutstandingCritical(ctx context.Context, machineID, excludeID uint) (int64, error)
	SaveAlert(ctx context.Context, a *model.Alert) error
	DeleteAlert(ctx context.Context, id uint) error

	CreateMaintenance(ctx context.Context, m *model.Maintenance) error
	GetMaintenance(ctx context.Context, id uint) (*model.Maintenance, error)
	ListMaintenance(ctx context.Context, q MaintenanceQuery) (*Page[model.Maintenance], error)
	SaveMaintenance(ctx context.Context, m *model.Maintenance) error
	DeleteMaintenance(ctx context.Context, id uint) error

	PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []uint) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForMachine(ctx context.Context, machineID uint) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound translates a missing row into the shared NotFound kind.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return err
}

// conflict translates a unique constraint violation when the driver reports one.
func conflict(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("%s", msg)
	}
	return err
}
