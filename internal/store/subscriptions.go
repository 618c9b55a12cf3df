package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopfloor-ops-backend/internal/model"
)

// PutSubscription upserts a push subscription and replaces the set of
// machines it follows.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		machines := []*model.Machine{}
		if len(machineIDs) > 0 {
			if err := tx.Find(&machines, machineIDs).Error; err != nil {
				return err
			}
		}

		return tx.Model(sub).Association("Machines").Replace(machines)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.conn(ctx).Preload("Machines").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Machines").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

func (s *gormStore) SubscriptionsForMachine(ctx context.Context, machineID uint) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.conn(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_id = ?", machineID).
		Find(&subscriptions).Error
	return subscriptions, err
}
