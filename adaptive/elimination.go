package adaptive

import (
	"context"
	"net/http"
	"time"

	"github.com/malwarebo/switchboard/decision"
	"github.com/malwarebo/switchboard/models"
)

// LabelElimination reports circuit-breaker status for one label at both
// scopes: the calling entity's bucket and the global bucket.
type LabelElimination struct {
	Label            string `json:"label"`
	EliminatedEntity bool   `json:"is_eliminated_entity"`
	EliminatedGlobal bool   `json:"is_eliminated_global"`
}

func (l LabelElimination) Eliminated() bool {
	return l.EliminatedEntity || l.EliminatedGlobal
}

type EliminationResult struct {
	Labels []LabelElimination `json:"labels_with_status"`
}

type eliminationCalcRequest struct {
	EntityID string                   `json:"id"`
	Params   string                   `json:"params"`
	Labels   []string                 `json:"labels"`
	Config   models.EliminationConfig `json:"config"`
}

type eliminationUpdateRequest struct {
	EntityID string                   `json:"id"`
	Params   string                   `json:"params"`
	Outcomes []LabelOutcome           `json:"labels_with_status"`
	Config   models.EliminationConfig `json:"config"`
}

// EliminationClient fronts the leaky-bucket elimination service. Failures
// pushed into a bucket of bounded size decay at the leak interval, so a
// connector's elimination is always for a bounded window.
type EliminationClient struct {
	transport *decision.Client
}

func NewEliminationClient(baseURL string, timeout time.Duration) *EliminationClient {
	return &EliminationClient{transport: decision.NewClient(baseURL, timeout)}
}

func (c *EliminationClient) Calculate(ctx context.Context, entityID, params string, labels []string, cfg models.EliminationConfig) (*EliminationResult, error) {
	req := &eliminationCalcRequest{
		EntityID: entityID,
		Params:   params,
		Labels:   labels,
		Config:   cfg,
	}
	var result EliminationResult
	if err := c.transport.SendRequest(ctx, http.MethodPost, "elimination/calculate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *EliminationClient) Update(ctx context.Context, entityID, params string, outcomes []LabelOutcome, cfg models.EliminationConfig) error {
	req := &eliminationUpdateRequest{
		EntityID: entityID,
		Params:   params,
		Outcomes: outcomes,
		Config:   cfg,
	}
	return c.transport.SendRequest(ctx, http.MethodPost, "elimination/update", req, nil)
}
