package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/malwarebo/switchboard/models"
	"github.com/malwarebo/switchboard/utils"
)

// EventStore persists captured routing events.
type EventStore interface {
	Save(ctx context.Context, event *models.RoutingEvent) error
}

// Recorder captures one event per decision-service call. Recording is
// orthogonal to the call's business outcome: the result is returned whether
// or not the event could be persisted.
type Recorder struct {
	store  EventStore
	engine string
	logger *utils.Logger
}

func NewRecorder(store EventStore, engine string) *Recorder {
	return &Recorder{
		store:  store,
		engine: engine,
		logger: utils.NewLogger("routing-events"),
	}
}

// CallInfo carries the correlation ids and the logging toggle for one call
// site. Internal administrative calls set LogEnabled false and skip event
// persistence entirely.
type CallInfo struct {
	Flow       string
	TenantID   string
	MerchantID string
	ProfileID  string
	PaymentID  string
	LogEnabled bool
}

// SendRecorded performs a call through the transport and, when enabled,
// persists an event with the serialized request, response or error summary,
// status code and latency.
func (c *Client) SendRecorded(ctx context.Context, rec *Recorder, info CallInfo, method, path string, body, out interface{}) error {
	if rec == nil || !info.LogEnabled {
		return c.SendRequest(ctx, method, path, body, out)
	}

	event := &models.RoutingEvent{
		Engine:     rec.engine,
		Flow:       info.Flow,
		Method:     method,
		URL:        c.baseURL + "/" + strings.TrimLeft(path, "/"),
		TenantID:   info.TenantID,
		MerchantID: info.MerchantID,
		ProfileID:  info.ProfileID,
		PaymentID:  info.PaymentID,
		RequestID:  utils.GetCorrelationID(ctx),
	}
	if body != nil {
		if payload, err := models.ToJSON(body); err == nil {
			event.Request = payload
		}
	}

	start := time.Now()
	statusCode, respBody, err := c.do(ctx, method, path, body)
	event.LatencyMS = time.Since(start).Milliseconds()
	event.StatusCode = statusCode

	var callErr error
	switch {
	case err != nil:
		event.Error = err.Error()
		callErr = err
	case statusCode < 200 || statusCode >= 300:
		callErr = parseServiceError(statusCode, respBody)
		event.Error = callErr.Error()
	default:
		var response models.JSON
		if json.Unmarshal(respBody, &response) == nil {
			event.Response = response
		}
		if out != nil && len(respBody) > 0 {
			if decodeErr := json.Unmarshal(respBody, out); decodeErr != nil {
				callErr = decodeErr
				event.Error = decodeErr.Error()
			}
		}
	}
	if event.StatusCode == 0 && callErr != nil {
		event.StatusCode = http.StatusServiceUnavailable
	}

	rec.record(ctx, event)
	return callErr
}

func (r *Recorder) record(ctx context.Context, event *models.RoutingEvent) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, event); err != nil {
		r.logger.Error(ctx, "Failed to persist routing event", map[string]interface{}{
			"error":      err.Error(),
			"flow":       event.Flow,
			"payment_id": event.PaymentID,
		})
	}
}
