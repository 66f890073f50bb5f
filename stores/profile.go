package stores

import (
	"context"

	"github.com/malwarebo/switchboard/models"
	"gorm.io/gorm"
)

type ProfileStore struct {
	BaseStore
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{BaseStore: BaseStore{db: db}}
}

func (s *ProfileStore) Create(ctx context.Context, profile *models.BusinessProfile) error {
	return s.GetDB(ctx).Create(profile).Error
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*models.BusinessProfile, error) {
	var profile models.BusinessProfile
	if err := s.GetDB(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateActiveAlgorithm repoints one transaction type's active algorithm
// pointer. A nil id unlinks it. Single-row write; no cross-row locking.
func (s *ProfileStore) UpdateActiveAlgorithm(ctx context.Context, profileID string, txnType models.TransactionType, algorithmID *string) error {
	column := "active_routing_id"
	switch txnType {
	case models.TransactionPayout:
		column = "active_payout_routing_id"
	case models.TransactionThreeDS:
		column = "active_three_ds_routing_id"
	}
	return s.GetDB(ctx).
		Model(&models.BusinessProfile{}).
		Where("id = ?", profileID).
		Update(column, algorithmID).Error
}

// UpdateDynamicRouting atomically replaces the per-profile dynamic pointer
// set.
func (s *ProfileStore) UpdateDynamicRouting(ctx context.Context, profileID string, ref *models.DynamicRoutingAlgorithmRef) error {
	payload, err := models.ToJSON(ref)
	if err != nil {
		return err
	}
	return s.GetDB(ctx).
		Model(&models.BusinessProfile{}).
		Where("id = ?", profileID).
		Update("dynamic_routing", payload).Error
}
