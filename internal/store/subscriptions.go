package store

import (
	"context"

	"gorm.io/gorm/clause"

	"trainer-booking-backend/internal/model"
)

// UpsertSubscription creates or replaces a subscription keyed by endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return translateError(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error)
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, translateError(err)
	}
	return &sub, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, translateError(err)
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return translateError(s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error)
}
