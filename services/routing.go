package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/malwarebo/switchboard/cache"
	"github.com/malwarebo/switchboard/models"
	"github.com/malwarebo/switchboard/utils"
	"gorm.io/gorm"
)

// AlgorithmStore is the persistence surface the services need for algorithm
// records. The table behind it is append-only.
type AlgorithmStore interface {
	Create(ctx context.Context, record *models.RoutingAlgorithmRecord) error
	GetByID(ctx context.Context, id string) (*models.RoutingAlgorithmRecord, error)
	GetForProfile(ctx context.Context, id, profileID string) (*models.RoutingAlgorithmRecord, error)
	ListByProfile(ctx context.Context, profileID string, limit, offset int) ([]*models.RoutingAlgorithmRecord, error)
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// ProfileStore is the persistence surface for business profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.BusinessProfile, error)
	UpdateActiveAlgorithm(ctx context.Context, profileID string, txnType models.TransactionType, algorithmID *string) error
	UpdateDynamicRouting(ctx context.Context, profileID string, ref *models.DynamicRoutingAlgorithmRef) error
}

// RoutingLifecycleService manages routing configuration: creating algorithm
// records and moving the per-profile active pointers. Configuration never
// mutates in place; every change is a new record plus a repoint.
type RoutingLifecycleService struct {
	algorithms  AlgorithmStore
	profiles    ProfileStore
	invalidator *cache.Invalidator
	logger      *utils.Logger
}

func NewRoutingLifecycleService(algorithms AlgorithmStore, profiles ProfileStore, invalidator *cache.Invalidator) *RoutingLifecycleService {
	return &RoutingLifecycleService{
		algorithms:  algorithms,
		profiles:    profiles,
		invalidator: invalidator,
		logger:      utils.NewLogger("routing-lifecycle"),
	}
}

// CreateAlgorithm validates and persists a new algorithm record. Creation
// never activates: the record stays dormant until linked.
func (s *RoutingLifecycleService) CreateAlgorithm(ctx context.Context, profileID, name, description string, txnType models.TransactionType, algorithm *models.StaticRoutingAlgorithm) (*models.RoutingAlgorithmRecord, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}

	record, err := models.NewAlgorithmRecord(profileID, name, description, txnType, algorithm)
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrInvalidAlgorithm)
	}
	if err := s.algorithms.Create(ctx, record); err != nil {
		return nil, utils.WrapError(err, "failed to persist routing algorithm")
	}

	s.logger.Info(ctx, "Created routing algorithm", map[string]interface{}{
		"algorithm_id":  record.ID,
		"profile_id":    profileID,
		"kind":          record.Kind,
		"algorithm_for": record.AlgorithmFor,
	})
	return record, nil
}

// LinkAlgorithm activates an algorithm for one transaction type by repointing
// the profile's active pointer. The algorithm must belong to the profile,
// match the requested transaction type, and not already be active.
func (s *RoutingLifecycleService) LinkAlgorithm(ctx context.Context, profileID, algorithmID string, txnType models.TransactionType) error {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return mapNotFound(err, utils.ErrProfileNotFound)
	}
	record, err := s.algorithms.GetByID(ctx, algorithmID)
	if err != nil {
		return mapNotFound(err, utils.ErrAlgorithmNotFound)
	}
	if record.ProfileID != profileID {
		return utils.ErrAlgorithmOwnership
	}
	if record.AlgorithmFor != txnType {
		return utils.ErrTransactionTypeMismatch
	}
	if active := profile.ActiveAlgorithmID(txnType); active != nil && *active == algorithmID {
		return utils.ErrAlgorithmAlreadyActive
	}

	if err := s.profiles.UpdateActiveAlgorithm(ctx, profileID, txnType, &algorithmID); err != nil {
		return utils.WrapError(err, "failed to activate routing algorithm")
	}

	s.logger.Info(ctx, "Activated routing algorithm", map[string]interface{}{
		"algorithm_id":  algorithmID,
		"profile_id":    profileID,
		"algorithm_for": txnType,
	})
	return nil
}

// UnlinkAlgorithm deactivates the active algorithm for one transaction type.
// The record itself stays; only the pointer is cleared.
func (s *RoutingLifecycleService) UnlinkAlgorithm(ctx context.Context, profileID string, txnType models.TransactionType) error {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return mapNotFound(err, utils.ErrProfileNotFound)
	}
	active := profile.ActiveAlgorithmID(txnType)
	if active == nil {
		return utils.ErrAlgorithmNotActive
	}

	if err := s.profiles.UpdateActiveAlgorithm(ctx, profileID, txnType, nil); err != nil {
		return utils.WrapError(err, "failed to deactivate routing algorithm")
	}

	s.logger.Info(ctx, "Deactivated routing algorithm", map[string]interface{}{
		"algorithm_id":  *active,
		"profile_id":    profileID,
		"algorithm_for": txnType,
	})
	return nil
}

// GetActiveAlgorithm returns the record behind the profile's active pointer
// for one transaction type.
func (s *RoutingLifecycleService) GetActiveAlgorithm(ctx context.Context, profileID string, txnType models.TransactionType) (*models.RoutingAlgorithmRecord, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	active := profile.ActiveAlgorithmID(txnType)
	if active == nil {
		return nil, utils.ErrAlgorithmNotActive
	}
	record, err := s.algorithms.GetByID(ctx, *active)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrAlgorithmNotFound)
	}
	return record, nil
}

// ListAlgorithms returns the profile's records, newest first.
func (s *RoutingLifecycleService) ListAlgorithms(ctx context.Context, profileID string, limit, offset int) ([]*models.RoutingAlgorithmRecord, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	return s.algorithms.ListByProfile(ctx, profileID, limit, offset)
}

// ToggleDynamicRouting enables, retunes or disables one adaptive strategy for
// a profile. Enabling a strategy with no config record yet creates one with
// defaults; disabling clears the pointer and leaves the record behind.
func (s *RoutingLifecycleService) ToggleDynamicRouting(ctx context.Context, profileID string, kind models.DynamicStrategyKind, feature models.DynamicRoutingFeature) (*models.DynamicRoutingAlgorithmRef, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	ref, err := profile.DynamicRoutingRef()
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}
	existing := ref.Ref(kind)

	if feature == models.FeatureNone {
		if existing == nil {
			return nil, utils.ErrAlgorithmNotActive
		}
		ref.SetRef(kind, nil)
		if err := s.profiles.UpdateDynamicRouting(ctx, profileID, ref); err != nil {
			return nil, utils.WrapError(err, "failed to disable dynamic routing")
		}
		s.broadcastInvalidation(ctx, profileID, existing.AlgorithmID)
		s.logger.Info(ctx, "Disabled dynamic routing", map[string]interface{}{
			"profile_id": profileID,
			"strategy":   kind,
		})
		return ref, nil
	}

	if existing != nil {
		if existing.Feature == feature {
			return nil, utils.ErrAlgorithmAlreadyActive
		}
		existing.Feature = feature
		if err := s.profiles.UpdateDynamicRouting(ctx, profileID, ref); err != nil {
			return nil, utils.WrapError(err, "failed to update dynamic routing feature")
		}
		s.broadcastInvalidation(ctx, profileID, existing.AlgorithmID)
		s.logger.Info(ctx, "Updated dynamic routing feature", map[string]interface{}{
			"profile_id": profileID,
			"strategy":   kind,
			"feature":    feature,
		})
		return ref, nil
	}

	payload, err := defaultDynamicConfig(kind)
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}
	record := &models.RoutingAlgorithmRecord{
		ProfileID:    profileID,
		Name:         string(kind),
		Description:  "dynamic routing configuration",
		AlgorithmFor: models.TransactionPayment,
		Kind:         models.AlgorithmDynamic,
		Algorithm:    payload,
	}
	err = s.algorithms.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.algorithms.Create(txCtx, record); err != nil {
			return err
		}
		ref.SetRef(kind, &models.DynamicAlgorithmRef{
			AlgorithmID: record.ID,
			EnabledAt:   time.Now().UTC(),
			Feature:     feature,
		})
		return s.profiles.UpdateDynamicRouting(txCtx, profileID, ref)
	})
	if err != nil {
		return nil, utils.WrapError(err, "failed to enable dynamic routing")
	}
	s.broadcastInvalidation(ctx, profileID, record.ID)

	s.logger.Info(ctx, "Enabled dynamic routing", map[string]interface{}{
		"profile_id":   profileID,
		"strategy":     kind,
		"feature":      feature,
		"algorithm_id": record.ID,
	})
	return ref, nil
}

// UpdateDynamicConfig retunes an enabled strategy. The new parameters become a
// fresh record and the profile pointer repoints to it in one transaction; the
// superseded record is left for audit.
func (s *RoutingLifecycleService) UpdateDynamicConfig(ctx context.Context, profileID string, kind models.DynamicStrategyKind, payload json.RawMessage) (*models.RoutingAlgorithmRecord, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	ref, err := profile.DynamicRoutingRef()
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}
	existing := ref.Ref(kind)
	if existing == nil {
		return nil, utils.ErrAlgorithmNotActive
	}

	config, err := parseDynamicConfig(kind, payload)
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrInvalidAlgorithm)
	}
	stored, err := models.ToJSON(config)
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}

	record := &models.RoutingAlgorithmRecord{
		ProfileID:    profileID,
		Name:         string(kind),
		Description:  "dynamic routing configuration",
		AlgorithmFor: models.TransactionPayment,
		Kind:         models.AlgorithmDynamic,
		Algorithm:    stored,
	}
	previousID := existing.AlgorithmID
	err = s.algorithms.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.algorithms.Create(txCtx, record); err != nil {
			return err
		}
		ref.SetRef(kind, &models.DynamicAlgorithmRef{
			AlgorithmID: record.ID,
			EnabledAt:   time.Now().UTC(),
			Feature:     existing.Feature,
		})
		return s.profiles.UpdateDynamicRouting(txCtx, profileID, ref)
	})
	if err != nil {
		return nil, utils.WrapError(err, "failed to update dynamic routing config")
	}
	s.broadcastInvalidation(ctx, profileID, previousID)

	s.logger.Info(ctx, "Updated dynamic routing config", map[string]interface{}{
		"profile_id":   profileID,
		"strategy":     kind,
		"algorithm_id": record.ID,
		"replaced_id":  previousID,
	})
	return record, nil
}

// SetDynamicSplitPercent sets the share of traffic routed through the
// adaptive strategies; the rest follows the static ranking untouched.
func (s *RoutingLifecycleService) SetDynamicSplitPercent(ctx context.Context, profileID string, percent *int) (*models.DynamicRoutingAlgorithmRef, error) {
	if percent != nil && (*percent < 0 || *percent > 100) {
		return nil, utils.ErrInvalidVolumeSplit
	}
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	ref, err := profile.DynamicRoutingRef()
	if err != nil {
		return nil, utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}
	ref.DynamicSplitPercent = percent
	if err := s.profiles.UpdateDynamicRouting(ctx, profileID, ref); err != nil {
		return nil, utils.WrapError(err, "failed to update dynamic split")
	}
	return ref, nil
}

func (s *RoutingLifecycleService) broadcastInvalidation(ctx context.Context, profileID, algorithmID string) {
	if s.invalidator == nil {
		return
	}
	// Best effort. A missed broadcast is bounded by the config cache TTL.
	_ = s.invalidator.Invalidate(ctx, profileID, algorithmID)
}

func defaultDynamicConfig(kind models.DynamicStrategyKind) (models.JSON, error) {
	switch kind {
	case models.StrategySuccessRate:
		return models.ToJSON(models.DefaultSuccessRateConfig())
	case models.StrategyElimination:
		return models.ToJSON(models.DefaultEliminationConfig())
	case models.StrategyContractBased:
		return models.ToJSON(models.ContractConfig{})
	}
	return nil, &models.ConversionError{Field: "dynamic_strategy_kind", Value: string(kind)}
}

func parseDynamicConfig(kind models.DynamicStrategyKind, payload []byte) (interface{}, error) {
	switch kind {
	case models.StrategySuccessRate:
		var cfg models.SuccessRateConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.StrategyElimination:
		var cfg models.EliminationConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.StrategyContractBased:
		var cfg models.ContractConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return nil, &models.ConversionError{Field: "dynamic_strategy_kind", Value: string(kind)}
}

func mapNotFound(err error, apiErr *utils.APIError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apiErr
	}
	return err
}
