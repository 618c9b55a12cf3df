package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfloor-ops-backend/internal/model"
)

var alertPreloads = []string{"Machine", "CreatedBy", "AssignedTo", "ResolvedBy"}

func (s *gormStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	return s.conn(ctx).Omit(clause.Associations).Create(a).Error
}

// GetAlert loads an alert with its machine and the users it references.
func (s *gormStore) GetAlert(ctx context.Context, id uint) (*model.Alert, error) {
	q := s.conn(ctx)
	for _, assoc := range alertPreloads {
		q = q.Preload(assoc)
	}
	var a model.Alert
	if err := q.First(&a, id).Error; err != nil {
		return nil, notFound(err, "alert")
	}
	return &a, nil
}

func (s *gormStore) ListAlerts(ctx context.Context, q AlertQuery) (*Page[model.Alert], error) {
	tx := s.conn(ctx).Model(&model.Alert{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Priority != "" {
		tx = tx.Where("priority = ?", q.Priority)
	}
	if q.MachineID != 0 {
		tx = tx.Where("machine_id = ?", q.MachineID)
	}
	tx = searchAny(tx, q.Search, "title", "description")

	if q.CreatedBy != 0 {
		tx = tx.Where("created_by_id = ?", q.CreatedBy)
	}
	if q.AssignedOrOpenFor != 0 {
		tx = tx.Where("(assigned_to_id = ? OR status = ?)", q.AssignedOrOpenFor, model.AlertOpen)
	}

	return paginate[model.Alert](tx, q.Pagination, alertPreloads...)
}

func (s *gormStore) CountOutstandingCritical(ctx context.Context, machineID, excludeID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&model.Alert{}).
		Where("machine_id = ? AND priority = ? AND id <> ?", machineID, model.PriorityCritical, excludeID).
		Where("status NOT IN ?", []model.AlertStatus{model.AlertResolved, model.AlertClosed}).
		Count(&n).Error
	return n, err
}

// SaveAlert writes the alert's own columns. Loaded associations are ignored.
func (s *gormStore) SaveAlert(ctx context.Context, a *model.Alert) error {
	return s.conn(ctx).Omit(clause.Associations).Save(a).Error
}

func (s *gormStore) DeleteAlert(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&model.Alert{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "alert")
	}
	return nil
}
