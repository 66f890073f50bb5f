package decision

import (
	"context"
	"net/http"
	"time"

	"github.com/malwarebo/switchboard/models"
)

// Flow names used by the observability wrapper.
const (
	FlowEvaluate   = "routing_evaluate"
	FlowCreateRule = "routing_create"
	FlowActivate   = "routing_activate"
	FlowList       = "routing_list"
	FlowListActive = "routing_list_active"
	EngineDecision = "decision_engine"
)

// EvaluateRequest asks the decision service to run its rule graph. The
// fallback output is the merchant's default connector list, letting the
// service fall back server-side if its own graph yields nothing.
type EvaluateRequest struct {
	CreatedBy      string                 `json:"created_by"`
	Parameters     map[string]interface{} `json:"parameters"`
	FallbackOutput []models.ConnectorInfo `json:"fallback_output"`
}

type EvaluateResponse struct {
	Output          models.Output          `json:"output"`
	EvaluatedOutput []models.ConnectorInfo `json:"evaluated_output"`
}

type CreateRuleRequest struct {
	RuleID       *string                       `json:"rule_id,omitempty"`
	Name         string                        `json:"name"`
	Description  string                        `json:"description,omitempty"`
	Metadata     map[string]interface{}        `json:"metadata,omitempty"`
	CreatedBy    string                        `json:"created_by"`
	AlgorithmFor models.TransactionType        `json:"algorithm_for"`
	Algorithm    models.StaticRoutingAlgorithm `json:"algorithm"`
}

type CreateRuleResponse struct {
	RuleID string `json:"rule_id"`
}

type ActivateRuleRequest struct {
	CreatedBy          string `json:"created_by"`
	RoutingAlgorithmID string `json:"routing_algorithm_id"`
}

// RuleRecord is the wire shape of a rule listed by the decision service.
type RuleRecord struct {
	RuleID       string                 `json:"rule_id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	AlgorithmFor models.TransactionType `json:"algorithm_for"`
	Algorithm    models.JSON            `json:"algorithm"`
	Active       bool                   `json:"active"`
	CreatedAt    time.Time              `json:"created_at"`
	ModifiedAt   time.Time              `json:"modified_at"`
}

func (c *Client) EvaluateRule(ctx context.Context, rec *Recorder, info CallInfo, req *EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	if err := c.SendRecorded(ctx, rec, info, http.MethodPost, "routing/evaluate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateRule(ctx context.Context, rec *Recorder, info CallInfo, req *CreateRuleRequest) (*CreateRuleResponse, error) {
	var resp CreateRuleResponse
	if err := c.SendRecorded(ctx, rec, info, http.MethodPost, "routing/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ActivateRule(ctx context.Context, rec *Recorder, info CallInfo, req *ActivateRuleRequest) error {
	return c.SendRecorded(ctx, rec, info, http.MethodPost, "routing/activate", req, nil)
}

func (c *Client) ListRules(ctx context.Context, rec *Recorder, info CallInfo, createdBy string) ([]RuleRecord, error) {
	var rules []RuleRecord
	if err := c.SendRecorded(ctx, rec, info, http.MethodPost, "routing/list/"+createdBy, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) ListActiveRules(ctx context.Context, rec *Recorder, info CallInfo, createdBy string) ([]RuleRecord, error) {
	var rules []RuleRecord
	if err := c.SendRecorded(ctx, rec, info, http.MethodPost, "routing/list/active/"+createdBy, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// EvaluateParameters flattens the fact bag into the typed parameter map the
// decision service expects.
func EvaluateParameters(input *models.BackendInput) map[string]interface{} {
	params := map[string]interface{}{
		"amount":   input.Payment.Amount,
		"currency": input.Payment.Currency,
	}
	addOptional := func(key string, v *string) {
		if v != nil {
			params[key] = *v
		}
	}
	addOptional("authentication_type", input.Payment.AuthenticationType)
	addOptional("card_bin", input.Payment.CardBin)
	addOptional("capture_method", input.Payment.CaptureMethod)
	addOptional("business_country", input.Payment.Country)
	addOptional("business_label", input.Payment.BusinessLabel)
	addOptional("setup_future_usage", input.Payment.SetupFutureUsage)
	addOptional("payment_method", input.Payment.PaymentMethod)
	addOptional("payment_method_type", input.Payment.PaymentMethodType)
	addOptional("card_network", input.Payment.CardNetwork)
	addOptional("mandate_type", input.Mandate.MandateType)
	addOptional("mandate_acceptance_type", input.Mandate.MandateAcceptanceType)
	addOptional("payment_type", input.Mandate.PaymentType)
	for k, v := range input.Metadata {
		params["metadata."+k] = v
	}
	return params
}
