package models

import "time"

// DynamicStrategyKind names one of the self-tuning routing strategies.
type DynamicStrategyKind string

const (
	StrategySuccessRate   DynamicStrategyKind = "success_rate"
	StrategyElimination   DynamicStrategyKind = "elimination"
	StrategyContractBased DynamicStrategyKind = "contract_based"
)

func ParseDynamicStrategyKind(s string) (DynamicStrategyKind, error) {
	switch DynamicStrategyKind(s) {
	case StrategySuccessRate, StrategyElimination, StrategyContractBased:
		return DynamicStrategyKind(s), nil
	}
	return "", &ConversionError{Field: "dynamic_strategy_kind", Value: s}
}

// DynamicRoutingFeature gates how far a strategy participates: metrics-only
// collection, or full dynamic connector selection.
type DynamicRoutingFeature string

const (
	FeatureNone             DynamicRoutingFeature = "none"
	FeatureMetrics          DynamicRoutingFeature = "metrics"
	FeatureDynamicSelection DynamicRoutingFeature = "dynamic_connector_selection"
)

// DynamicAlgorithmRef points a profile at the active config record of one
// strategy kind. At most one algorithm id is active per kind per profile.
type DynamicAlgorithmRef struct {
	AlgorithmID string                `json:"algorithm_id"`
	EnabledAt   time.Time             `json:"enabled_at"`
	Feature     DynamicRoutingFeature `json:"feature"`
}

// DynamicRoutingAlgorithmRef is the per-profile pointer set, stored on the
// business profile as jsonb.
type DynamicRoutingAlgorithmRef struct {
	SuccessBased        *DynamicAlgorithmRef `json:"success_based_algorithm,omitempty"`
	Elimination         *DynamicAlgorithmRef `json:"elimination_routing_algorithm,omitempty"`
	ContractBased       *DynamicAlgorithmRef `json:"contract_based_routing,omitempty"`
	DynamicSplitPercent *int                 `json:"volume_split_between_static_and_dynamic,omitempty"`
}

func (r *DynamicRoutingAlgorithmRef) Ref(kind DynamicStrategyKind) *DynamicAlgorithmRef {
	if r == nil {
		return nil
	}
	switch kind {
	case StrategySuccessRate:
		return r.SuccessBased
	case StrategyElimination:
		return r.Elimination
	case StrategyContractBased:
		return r.ContractBased
	}
	return nil
}

func (r *DynamicRoutingAlgorithmRef) SetRef(kind DynamicStrategyKind, ref *DynamicAlgorithmRef) {
	switch kind {
	case StrategySuccessRate:
		r.SuccessBased = ref
	case StrategyElimination:
		r.Elimination = ref
	case StrategyContractBased:
		r.ContractBased = ref
	}
}

// CurrentBlockThreshold bounds the live aggregation block of the success-rate
// window.
type CurrentBlockThreshold struct {
	MaxTotalCount int64 `json:"max_total_count"`
	DurationSecs  int64 `json:"duration_in_seconds,omitempty"`
}

// SuccessRateConfig tunes the success-rate strategy. Persisted as an
// append-only algorithm record; parameter changes create a new record.
type SuccessRateConfig struct {
	MinAggregatesSize     int                   `json:"min_aggregates_size"`
	DefaultSuccessRate    float64               `json:"default_success_rate"`
	SpecificityLevel      string                `json:"specificity_level"`
	ExplorationPercent    float64               `json:"exploration_percent"`
	MaxAggregatesSize     int                   `json:"max_aggregates_size"`
	CurrentBlockThreshold CurrentBlockThreshold `json:"current_block_threshold"`
}

func DefaultSuccessRateConfig() SuccessRateConfig {
	return SuccessRateConfig{
		MinAggregatesSize:  5,
		DefaultSuccessRate: 100,
		SpecificityLevel:   "merchant",
		ExplorationPercent: 20,
		MaxAggregatesSize:  8,
		CurrentBlockThreshold: CurrentBlockThreshold{
			MaxTotalCount: 5,
		},
	}
}

// EliminationConfig tunes the leaky-bucket circuit breaker. Stale failure
// entries decay at the leak interval.
type EliminationConfig struct {
	BucketSize             int   `json:"bucket_size"`
	BucketLeakIntervalSecs int64 `json:"bucket_leak_interval_in_seconds"`
}

func DefaultEliminationConfig() EliminationConfig {
	return EliminationConfig{
		BucketSize:             5,
		BucketLeakIntervalSecs: 60,
	}
}

// ContractTarget is one label's contracted (count, time-window) commitment.
type ContractTarget struct {
	Label       string `json:"label"`
	TargetCount int64  `json:"target_count"`
	TargetTime  int64  `json:"target_time"`
}

// ContractConfig tunes contract-based scoring.
type ContractConfig struct {
	Targets []ContractTarget `json:"targets"`
}
