package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfloor-ops-backend/internal/model"
)

func (s *gormStore) CreateMaintenance(ctx context.Context, m *model.Maintenance) error {
	return s.conn(ctx).Omit(clause.Associations).Create(m).Error
}

func (s *gormStore) GetMaintenance(ctx context.Context, id uint) (*model.Maintenance, error) {
	var m model.Maintenance
	err := s.conn(ctx).
		Preload("Machine").Preload("CreatedBy").Preload("CompletedBy").
		First(&m, id).Error
	if err != nil {
		return nil, notFound(err, "maintenance record")
	}
	return &m, nil
}

func (s *gormStore) ListMaintenance(ctx context.Context, q MaintenanceQuery) (*Page[model.Maintenance], error) {
	tx := s.conn(ctx).Model(&model.Maintenance{})
	if q.MachineID != 0 {
		tx = tx.Where("machine_id = ?", q.MachineID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	return paginate[model.Maintenance](tx, q.Pagination, "Machine", "CreatedBy", "CompletedBy")
}

func (s *gormStore) SaveMaintenance(ctx context.Context, m *model.Maintenance) error {
	return s.conn(ctx).Omit(clause.Associations).Save(m).Error
}

func (s *gormStore) DeleteMaintenance(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&model.Maintenance{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "maintenance record")
	}
	return nil
}
