package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfloor-ops-backend/internal/model"
)

func (s *gormStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	return conflict(s.conn(ctx).Omit(clause.Associations).Create(m).Error, "serial number already in use")
}

func (s *gormStore) GetMachine(ctx context.Context, id uint) (*model.Machine, error) {
	var m model.Machine
	if err := s.conn(ctx).Preload("CreatedBy").First(&m, id).Error; err != nil {
		return nil, notFound(err, "machine")
	}
	return &m, nil
}

func (s *gormStore) GetMachineForUpdate(ctx context.Context, id uint) (*model.Machine, error) {
	q := s.conn(ctx)
	// SQLite serializes writers and has no row locks.
	if s.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m model.Machine
	if err := q.First(&m, id).Error; err != nil {
		return nil, notFound(err, "machine")
	}
	return &m, nil
}

func (s *gormStore) SerialNumberTaken(ctx context.Context, serial string, excludeID uint) (bool, error) {
	var n int64
	q := s.conn(ctx).Model(&model.Machine{}).Where("serial_number = ?", serial)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *gormStore) ListMachines(ctx context.Context, q MachineQuery) (*Page[model.Machine], error) {
	tx := s.conn(ctx).Model(&model.Machine{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Location != "" {
		tx = tx.Where("location = ?", q.Location)
	}
	tx = searchAny(tx, q.Search, "name", "model", "serial_number", "location")
	return paginate[model.Machine](tx, q.Pagination, "CreatedBy")
}

// ListMachinesDue returns machines whose next maintenance is at or before
// the given time, soonest first. Offline machines are skipped.
func (s *gormStore) ListMachinesDue(ctx context.Context, before time.Time) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.conn(ctx).
		Where("next_scheduled_maintenance <= ? AND status <> ?", before, model.MachineOffline).
		Order("next_scheduled_maintenance ASC").
		Find(&machines).Error
	return machines, err
}

func (s *gormStore) SaveMachine(ctx context.Context, m *model.Machine) error {
	return conflict(s.conn(ctx).Omit(clause.Associations).Save(m).Error, "serial number already in use")
}

func (s *gormStore) CompareAndSwapMachineStatus(ctx context.Context, id uint, from, to model.MachineStatus) (bool, error) {
	res := s.conn(ctx).Model(&model.Machine{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteMachine removes the machine together with its alerts, maintenance
// records and push subscription links.
func (s *gormStore) DeleteMachine(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Machine{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "machine")
		}
		if err := tx.Where("machine_id = ?", id).Delete(&model.Alert{}).Error; err != nil {
			return err
		}
		if err := tx.Where("machine_id = ?", id).Delete(&model.Maintenance{}).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM subscription_machine_mapping WHERE machine_id = ?", id).Error
	})
}
