package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfloor-ops-backend/internal/model"
)

func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return conflict(s.conn(ctx).Create(u).Error, "email already registered")
}

func (s *gormStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *gormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.conn(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *gormStore) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var n int64
	q := s.conn(ctx).Model(&model.User{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *gormStore) ListUsers(ctx context.Context, q UserQuery) (*Page[model.User], error) {
	tx := s.conn(ctx).Model(&model.User{})
	if q.Role != "" {
		tx = tx.Where("role = ?", q.Role)
	}
	if q.IsActive != nil {
		tx = tx.Where("is_active = ?", *q.IsActive)
	}
	tx = searchAny(tx, q.Search, "name", "email", "department")
	return paginate[model.User](tx, q.Pagination)
}

func (s *gormStore) SaveUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return conflict(s.conn(ctx).Omit(clause.Associations).Save(u).Error, "email already registered")
}

// DeleteUser removes the account and detaches it from alerts it was
// assigned to. Records the user created are kept.
func (s *gormStore) DeleteUser(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "user")
		}
		if err := tx.Model(&model.Alert{}).Where("assigned_to_id = ?", id).
			Update("assigned_to_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&model.PushSubscription{}).Error
	})
}
