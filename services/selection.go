package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/malwarebo/switchboard/adaptive"
	"github.com/malwarebo/switchboard/cache"
	"github.com/malwarebo/switchboard/decision"
	"github.com/malwarebo/switchboard/models"
	"github.com/malwarebo/switchboard/routing"
	"github.com/malwarebo/switchboard/utils"
	"golang.org/x/sync/errgroup"
)

const outcomePushTimeout = 10 * time.Second

// SelectionDeps wires the per-transaction pipeline. Every external client is
// optional; a nil client simply removes that signal from the pipeline.
type SelectionDeps struct {
	Profiles          ProfileStore
	Algorithms        AlgorithmStore
	Decision          *decision.Client
	Recorder          *decision.Recorder
	SuccessRate       *adaptive.SuccessRateClient
	Elimination       *adaptive.EliminationClient
	Contract          *adaptive.ContractClient
	Configs           *cache.ConfigCache
	TenantID          string
	PreferSource      routing.ResultSource
	EliminationPolicy adaptive.EliminationPolicy
}

// SelectionService runs connector selection for one transaction: static
// evaluation, the decision service, then adaptive re-ranking. External
// failures degrade the result, they never fail the payment.
type SelectionService struct {
	profiles          ProfileStore
	algorithms        AlgorithmStore
	decision          *decision.Client
	recorder          *decision.Recorder
	successRate       *adaptive.SuccessRateClient
	elimination       *adaptive.EliminationClient
	contract          *adaptive.ContractClient
	configs           *cache.ConfigCache
	tenantID          string
	prefer            routing.ResultSource
	eliminationPolicy adaptive.EliminationPolicy
	logger            *utils.Logger
}

func NewSelectionService(deps SelectionDeps) *SelectionService {
	policy := deps.EliminationPolicy
	if policy == "" {
		policy = adaptive.PolicyDemote
	}
	prefer := deps.PreferSource
	if prefer == "" {
		prefer = routing.SourceDecisionService
	}
	return &SelectionService{
		profiles:          deps.Profiles,
		algorithms:        deps.Algorithms,
		decision:          deps.Decision,
		recorder:          deps.Recorder,
		successRate:       deps.SuccessRate,
		elimination:       deps.Elimination,
		contract:          deps.Contract,
		configs:           deps.Configs,
		tenantID:          deps.TenantID,
		prefer:            prefer,
		eliminationPolicy: policy,
		logger:            utils.NewLogger("connector-selection"),
	}
}

type SelectionRequest struct {
	ProfileID       string
	MerchantID      string
	PaymentID       string
	TransactionType models.TransactionType
	Input           models.BackendInput
}

type SelectionResult struct {
	Connectors []models.RoutableConnectorChoice `json:"connectors"`
	Approach   adaptive.RoutingApproach         `json:"routing_approach,omitempty"`
}

// SelectConnectors produces the ordered connector attempt list for one
// transaction.
func (s *SelectionService) SelectConnectors(ctx context.Context, req *SelectionRequest) (*SelectionResult, error) {
	profile, err := s.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, mapNotFound(err, utils.ErrProfileNotFound)
	}
	ctx = utils.WithProfileID(ctx, profile.ID)

	fallback, err := profile.FallbackChoices()
	if err != nil {
		utils.LogError(ctx, err, "Merchant fallback list failed to deserialize", nil)
		fallback = nil
	}

	local := s.staticCandidates(ctx, profile, req.TransactionType, &req.Input)
	if len(local) == 0 {
		local = fallback
	}

	ref, err := profile.DynamicRoutingRef()
	if err != nil {
		utils.LogError(ctx, err, "Dynamic routing ref failed to deserialize", nil)
		ref = &models.DynamicRoutingAlgorithmRef{}
	}

	labels := adaptive.Labels(local)
	params := scoringParams(&req.Input)

	var (
		remote         []models.RoutableConnectorChoice
		remoteRaw      []models.RoutableConnectorChoice
		srResult       *adaptive.SuccessRateResult
		elimResult     *adaptive.EliminationResult
		contractResult *adaptive.ContractResult
	)

	// Each branch swallows its own failure; nothing here may sink the
	// payment, so no goroutine returns an error to the group.
	g, gctx := errgroup.WithContext(ctx)
	if s.decision != nil {
		g.Go(func() error {
			resp, err := s.decision.EvaluateRule(gctx, s.recorder, decision.CallInfo{
				Flow:       decision.FlowEvaluate,
				TenantID:   s.tenantID,
				MerchantID: req.MerchantID,
				ProfileID:  profile.ID,
				PaymentID:  req.PaymentID,
				LogEnabled: true,
			}, &decision.EvaluateRequest{
				CreatedBy:      profile.ID,
				Parameters:     decision.EvaluateParameters(&req.Input),
				FallbackOutput: models.ChoicesToInfo(fallback),
			})
			if err != nil {
				utils.LogError(gctx, err, "Decision service evaluation failed, continuing with local result", map[string]interface{}{
					"payment_id": req.PaymentID,
				})
				return nil
			}
			choices, convErr := models.ChoicesFromInfo(resp.EvaluatedOutput)
			if convErr != nil {
				utils.LogError(gctx, convErr, "Decision service returned an unroutable connector", nil)
				return nil
			}
			remote = choices
			if raw, rawErr := routing.FlattenOutput(resp.Output); rawErr == nil {
				remoteRaw = raw
			}
			return nil
		})
	}
	if s.successRate != nil && selectionEnabled(ref.SuccessBased) && len(labels) > 0 {
		cfg := s.successRateConfig(ctx, profile.ID, ref.SuccessBased.AlgorithmID)
		g.Go(func() error {
			result, err := s.successRate.Calculate(gctx, profile.ID, params, labels, cfg)
			if err != nil {
				utils.LogError(gctx, err, "Success-rate calculation failed, keeping static order", nil)
				return nil
			}
			srResult = result
			return nil
		})
	}
	if s.elimination != nil && selectionEnabled(ref.Elimination) && len(labels) > 0 {
		cfg := s.eliminationConfig(ctx, profile.ID, ref.Elimination.AlgorithmID)
		g.Go(func() error {
			result, err := s.elimination.Calculate(gctx, profile.ID, params, labels, cfg)
			if err != nil {
				utils.LogError(gctx, err, "Elimination check failed, keeping all candidates", nil)
				return nil
			}
			elimResult = result
			return nil
		})
	}
	if s.contract != nil && selectionEnabled(ref.ContractBased) && len(labels) > 0 {
		cfg := s.contractConfig(ctx, profile.ID, ref.ContractBased.AlgorithmID)
		g.Go(func() error {
			result, err := s.contract.Calculate(gctx, profile.ID, params, labels, cfg)
			if err != nil {
				utils.LogError(gctx, err, "Contract scoring failed, keeping static order", nil)
				return nil
			}
			contractResult = result
			return nil
		})
	}
	_ = g.Wait()

	selected := routing.SelectEvaluationResult(local, remote, s.prefer)

	ranked := selected
	result := &SelectionResult{}
	if s.adaptiveShare(ref) {
		switch {
		case srResult != nil:
			ranked = adaptive.ApplyScores(ranked, srResult.Scores)
			result.Approach = srResult.Approach
		case contractResult != nil:
			// Contract scoring ranks only when success-rate is off; the
			// success-rate signal wins when both strategies are enabled.
			ranked = adaptive.ApplyScores(ranked, contractLabelScores(contractResult))
		}
		if elimResult != nil {
			ranked = adaptive.ApplyElimination(ranked, elimResult, s.eliminationPolicy)
		}
	}

	final := routing.TransformOutputForRouter(remoteRaw, ranked)
	if len(final) == 0 {
		s.logger.Warn(ctx, "Selection pipeline produced no candidates, using merchant fallback", map[string]interface{}{
			"payment_id": req.PaymentID,
		})
		final = fallback
	}
	if len(final) == 0 {
		return nil, utils.ErrNoEligibleConnectors
	}

	result.Connectors = final
	return result, nil
}

// OutcomeRequest reports how an attempted connector fared, so the adaptive
// windows keep tracking reality.
type OutcomeRequest struct {
	ProfileID  string
	MerchantID string
	PaymentID  string
	Connector  models.RoutableConnector
	Success    bool
	Input      models.BackendInput
}

// UpdateOutcome pushes the outcome to every enabled strategy. The pushes are
// fire-and-forget: the routing decision is already made and push failures
// only slow window convergence.
func (s *SelectionService) UpdateOutcome(ctx context.Context, req *OutcomeRequest) error {
	profile, err := s.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return mapNotFound(err, utils.ErrProfileNotFound)
	}
	ref, err := profile.DynamicRoutingRef()
	if err != nil {
		return utils.WrapAPIError(err, utils.ErrConfigDeserialization)
	}

	outcome := adaptive.LabelOutcome{
		Label:   string(req.Connector),
		Success: req.Success,
	}
	go s.pushOutcome(context.WithoutCancel(ctx), profile, ref, scoringParams(&req.Input), outcome)
	return nil
}

func (s *SelectionService) pushOutcome(ctx context.Context, profile *models.BusinessProfile, ref *models.DynamicRoutingAlgorithmRef, params string, outcome adaptive.LabelOutcome) {
	ctx, cancel := context.WithTimeout(ctx, outcomePushTimeout)
	defer cancel()

	if s.successRate != nil && metricsEnabled(ref.SuccessBased) {
		cfg := s.successRateConfig(ctx, profile.ID, ref.SuccessBased.AlgorithmID)
		if err := s.successRate.Update(ctx, profile.ID, params, []adaptive.LabelOutcome{outcome}, cfg); err != nil {
			utils.LogError(ctx, err, "Success-rate window update failed", map[string]interface{}{
				"profile_id": profile.ID,
			})
		}
	}
	if s.elimination != nil && metricsEnabled(ref.Elimination) {
		cfg := s.eliminationConfig(ctx, profile.ID, ref.Elimination.AlgorithmID)
		if err := s.elimination.Update(ctx, profile.ID, params, []adaptive.LabelOutcome{outcome}, cfg); err != nil {
			utils.LogError(ctx, err, "Elimination bucket update failed", map[string]interface{}{
				"profile_id": profile.ID,
			})
		}
	}
	if s.contract != nil && metricsEnabled(ref.ContractBased) && outcome.Success {
		if err := s.contract.Update(ctx, profile.ID, params, []string{outcome.Label}); err != nil {
			utils.LogError(ctx, err, "Contract count update failed", map[string]interface{}{
				"profile_id": profile.ID,
			})
		}
	}
}

// staticCandidates evaluates the profile's active static algorithm. Any
// failure degrades to nil so the caller falls back to the merchant default.
func (s *SelectionService) staticCandidates(ctx context.Context, profile *models.BusinessProfile, txnType models.TransactionType, input *models.BackendInput) []models.RoutableConnectorChoice {
	activeID := profile.ActiveAlgorithmID(txnType)
	if activeID == nil {
		return nil
	}
	record, err := s.algorithms.GetByID(ctx, *activeID)
	if err != nil {
		utils.LogError(ctx, err, "Active routing algorithm could not be loaded", map[string]interface{}{
			"algorithm_id": *activeID,
		})
		return nil
	}
	algorithm, err := record.StaticAlgorithm()
	if err != nil {
		utils.LogError(ctx, err, "Active routing algorithm failed to deserialize", map[string]interface{}{
			"algorithm_id": record.ID,
		})
		return nil
	}
	choices, err := routing.FlattenAlgorithm(algorithm, input)
	if err != nil {
		utils.LogError(ctx, err, "Static routing evaluation failed", map[string]interface{}{
			"algorithm_id": record.ID,
		})
		return nil
	}
	return choices
}

// adaptiveShare draws the static-vs-dynamic traffic split. No split
// configured means the adaptive strategies see every transaction.
func (s *SelectionService) adaptiveShare(ref *models.DynamicRoutingAlgorithmRef) bool {
	if ref.DynamicSplitPercent == nil {
		return true
	}
	return rand.Intn(100) < *ref.DynamicSplitPercent
}

func (s *SelectionService) successRateConfig(ctx context.Context, profileID, algorithmID string) models.SuccessRateConfig {
	cfg := models.DefaultSuccessRateConfig()
	s.loadDynamicConfig(ctx, profileID, algorithmID, &cfg)
	return cfg
}

func (s *SelectionService) eliminationConfig(ctx context.Context, profileID, algorithmID string) models.EliminationConfig {
	cfg := models.DefaultEliminationConfig()
	s.loadDynamicConfig(ctx, profileID, algorithmID, &cfg)
	return cfg
}

func (s *SelectionService) contractConfig(ctx context.Context, profileID, algorithmID string) models.ContractConfig {
	var cfg models.ContractConfig
	s.loadDynamicConfig(ctx, profileID, algorithmID, &cfg)
	return cfg
}

// loadDynamicConfig reads a strategy config through the cache, falling back
// to the record store on a miss. False leaves out untouched defaults.
func (s *SelectionService) loadDynamicConfig(ctx context.Context, profileID, algorithmID string, out interface{}) bool {
	if s.configs != nil {
		if hit, err := s.configs.Get(ctx, profileID, algorithmID, out); err == nil && hit {
			return true
		}
	}
	record, err := s.algorithms.GetByID(ctx, algorithmID)
	if err != nil {
		s.logger.Warn(ctx, "Dynamic routing config could not be loaded, using defaults", map[string]interface{}{
			"algorithm_id": algorithmID,
			"error":        err.Error(),
		})
		return false
	}
	raw, err := json.Marshal(record.Algorithm)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		utils.LogError(ctx, err, "Dynamic routing config failed to deserialize", map[string]interface{}{
			"algorithm_id": algorithmID,
		})
		return false
	}
	if s.configs != nil {
		if err := s.configs.Set(ctx, profileID, algorithmID, out); err != nil {
			s.logger.Warn(ctx, "Failed to cache dynamic routing config", map[string]interface{}{
				"algorithm_id": algorithmID,
				"error":        err.Error(),
			})
		}
	}
	return true
}

func contractLabelScores(result *adaptive.ContractResult) []adaptive.LabelScore {
	scores := make([]adaptive.LabelScore, 0, len(result.Scores))
	for _, s := range result.Scores {
		scores = append(scores, adaptive.LabelScore{Label: s.Label, Score: s.Score})
	}
	return scores
}

func selectionEnabled(ref *models.DynamicAlgorithmRef) bool {
	return ref != nil && ref.Feature == models.FeatureDynamicSelection
}

func metricsEnabled(ref *models.DynamicAlgorithmRef) bool {
	return ref != nil && ref.Feature != models.FeatureNone
}

// scoringParams keys the adaptive windows by payment shape, so a connector's
// card performance never dilutes its wallet performance.
func scoringParams(input *models.BackendInput) string {
	parts := []string{input.Payment.Currency}
	if input.Payment.PaymentMethod != nil {
		parts = append(parts, *input.Payment.PaymentMethod)
	}
	if input.Payment.PaymentMethodType != nil {
		parts = append(parts, *input.Payment.PaymentMethodType)
	}
	return strings.Join(parts, ":")
}
