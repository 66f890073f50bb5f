package stores

import (
	"context"

	"github.com/malwarebo/switchboard/models"
	"gorm.io/gorm"
)

// RoutingAlgorithmStore persists algorithm records. The table is append-only:
// records are created and read, never updated or deleted.
type RoutingAlgorithmStore struct {
	BaseStore
}

func NewRoutingAlgorithmStore(db *gorm.DB) *RoutingAlgorithmStore {
	return &RoutingAlgorithmStore{BaseStore: BaseStore{db: db}}
}

func (s *RoutingAlgorithmStore) Create(ctx context.Context, record *models.RoutingAlgorithmRecord) error {
	return s.GetDB(ctx).Create(record).Error
}

func (s *RoutingAlgorithmStore) GetByID(ctx context.Context, id string) (*models.RoutingAlgorithmRecord, error) {
	var record models.RoutingAlgorithmRecord
	if err := s.GetDB(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RoutingAlgorithmStore) GetForProfile(ctx context.Context, id, profileID string) (*models.RoutingAlgorithmRecord, error) {
	var record models.RoutingAlgorithmRecord
	if err := s.GetDB(ctx).First(&record, "id = ? AND profile_id = ?", id, profileID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RoutingAlgorithmStore) ListByProfile(ctx context.Context, profileID string, limit, offset int) ([]*models.RoutingAlgorithmRecord, error) {
	var records []*models.RoutingAlgorithmRecord
	query := s.GetDB(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
