package adaptive

import (
	"context"
	"net/http"
	"time"

	"github.com/malwarebo/switchboard/decision"
	"github.com/malwarebo/switchboard/models"
)

// ContractScore reflects a label's progress toward its contracted volume
// target; labels still short of contracted minimums score higher.
type ContractScore struct {
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	CurrentCount int64   `json:"current_count"`
}

type ContractResult struct {
	Scores []ContractScore `json:"labels_with_score"`
}

type contractCalcRequest struct {
	EntityID string                `json:"id"`
	Params   string                `json:"params"`
	Labels   []string              `json:"labels"`
	Config   models.ContractConfig `json:"config"`
}

type contractUpdateRequest struct {
	EntityID string   `json:"id"`
	Params   string   `json:"params"`
	Labels   []string `json:"labels"`
}

// ContractClient fronts the contract-based scoring service.
type ContractClient struct {
	transport *decision.Client
}

func NewContractClient(baseURL string, timeout time.Duration) *ContractClient {
	return &ContractClient{transport: decision.NewClient(baseURL, timeout)}
}

func (c *ContractClient) Calculate(ctx context.Context, entityID, params string, labels []string, cfg models.ContractConfig) (*ContractResult, error) {
	req := &contractCalcRequest{
		EntityID: entityID,
		Params:   params,
		Labels:   labels,
		Config:   cfg,
	}
	var result ContractResult
	if err := c.transport.SendRequest(ctx, http.MethodPost, "contract/calculate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update increments the rolling current_count for the labels that handled
// the completed transaction.
func (c *ContractClient) Update(ctx context.Context, entityID, params string, labels []string) error {
	req := &contractUpdateRequest{
		EntityID: entityID,
		Params:   params,
		Labels:   labels,
	}
	return c.transport.SendRequest(ctx, http.MethodPost, "contract/update", req, nil)
}
