package stores

import (
	"context"

	"github.com/malwarebo/switchboard/models"
	"gorm.io/gorm"
)

type RoutingEventStore struct {
	BaseStore
}

func NewRoutingEventStore(db *gorm.DB) *RoutingEventStore {
	return &RoutingEventStore{BaseStore: BaseStore{db: db}}
}

func (s *RoutingEventStore) Save(ctx context.Context, event *models.RoutingEvent) error {
	return s.GetDB(ctx).Create(event).Error
}

func (s *RoutingEventStore) ListByPayment(ctx context.Context, paymentID string) ([]*models.RoutingEvent, error) {
	var events []*models.RoutingEvent
	if err := s.GetDB(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
