package adaptive

import (
	"context"
	"net/http"
	"time"

	"github.com/malwarebo/switchboard/decision"
	"github.com/malwarebo/switchboard/models"
)

// RoutingApproach tags how the success-rate service arrived at its scores.
type RoutingApproach string

const (
	ApproachExploitation RoutingApproach = "exploitation"
	ApproachExploration  RoutingApproach = "exploration"
)

type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type LabelOutcome struct {
	Label   string `json:"label"`
	Success bool   `json:"status"`
}

type SuccessRateResult struct {
	Scores   []LabelScore    `json:"labels_with_score"`
	Approach RoutingApproach `json:"routing_approach"`
}

type successRateCalcRequest struct {
	EntityID string                   `json:"id"`
	Params   string                   `json:"params"`
	Labels   []string                 `json:"labels"`
	Config   models.SuccessRateConfig `json:"config"`
}

type successRateUpdateRequest struct {
	EntityID string                   `json:"id"`
	Params   string                   `json:"params"`
	Outcomes []LabelOutcome           `json:"labels_with_status"`
	Config   models.SuccessRateConfig `json:"config"`
}

// SuccessRateClient is a thin client over the success-rate scoring service.
// It is a signal source only: scores re-rank an existing candidate list.
type SuccessRateClient struct {
	transport *decision.Client
}

func NewSuccessRateClient(baseURL string, timeout time.Duration) *SuccessRateClient {
	return &SuccessRateClient{transport: decision.NewClient(baseURL, timeout)}
}

// Calculate returns a score per candidate label plus the routing approach
// (exploitation of known rates vs exploration of under-sampled labels).
func (c *SuccessRateClient) Calculate(ctx context.Context, entityID, params string, labels []string, cfg models.SuccessRateConfig) (*SuccessRateResult, error) {
	req := &successRateCalcRequest{
		EntityID: entityID,
		Params:   params,
		Labels:   labels,
		Config:   cfg,
	}
	var result SuccessRateResult
	if err := c.transport.SendRequest(ctx, http.MethodPost, "success_rate/calculate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update pushes completed-transaction outcomes into the rolling window. It is
// fire-and-forget relative to the routing decision already made.
func (c *SuccessRateClient) Update(ctx context.Context, entityID, params string, outcomes []LabelOutcome, cfg models.SuccessRateConfig) error {
	req := &successRateUpdateRequest{
		EntityID: entityID,
		Params:   params,
		Outcomes: outcomes,
		Config:   cfg,
	}
	return c.transport.SendRequest(ctx, http.MethodPost, "success_rate/update", req, nil)
}
