package decision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/malwarebo/switchboard/models"
)

func TestEvaluateRuleSuccess(t *testing.T) {
	var gotRequest EvaluateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/routing/evaluate" {
			t.Errorf("path = %s, want /routing/evaluate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EvaluateResponse{
			EvaluatedOutput: []models.ConnectorInfo{
				{Connector: "adyen"},
				{Connector: "stripe"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	resp, err := client.EvaluateRule(context.Background(), nil, CallInfo{}, &EvaluateRequest{
		CreatedBy: "profile_1",
		Parameters: map[string]interface{}{
			"amount":   int64(1500),
			"currency": "USD",
		},
		FallbackOutput: []models.ConnectorInfo{{Connector: "checkout"}},
	})
	if err != nil {
		t.Fatalf("EvaluateRule() error = %v", err)
	}
	if len(resp.EvaluatedOutput) != 2 || resp.EvaluatedOutput[0].Connector != "adyen" {
		t.Errorf("EvaluatedOutput = %+v", resp.EvaluatedOutput)
	}
	if len(gotRequest.FallbackOutput) != 1 || gotRequest.FallbackOutput[0].Connector != "checkout" {
		t.Errorf("fallback_output sent = %+v, want merchant default attached", gotRequest.FallbackOutput)
	}
}

func TestSendRequestKnownServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"RULE_NOT_FOUND","message":"no active rule for profile"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.SendRequest(context.Background(), http.MethodPost, "routing/evaluate", nil, nil)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error type = %T, want *ServiceError", err)
	}
	if svcErr.Code != CodeRuleNotFound {
		t.Errorf("Code = %v, want %v", svcErr.Code, CodeRuleNotFound)
	}
	if svcErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", svcErr.StatusCode, http.StatusNotFound)
	}
}

func TestSendRequestUnknownCodePreservesRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"SOME_FUTURE_CODE","message":"not yet modeled"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.SendRequest(context.Background(), http.MethodPost, "routing/activate", nil, nil)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error type = %T, want *ServiceError", err)
	}
	if svcErr.Code != CodeUnknown {
		t.Errorf("Code = %v, want %v", svcErr.Code, CodeUnknown)
	}
	if svcErr.RawCode != "SOME_FUTURE_CODE" {
		t.Errorf("RawCode = %q, want raw code preserved", svcErr.RawCode)
	}
}

func TestSendRequestNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.SendRequest(context.Background(), http.MethodPost, "routing/evaluate", nil, nil)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error type = %T, want *ServiceError", err)
	}
	if svcErr.Code != CodeUnknown {
		t.Errorf("Code = %v, want %v", svcErr.Code, CodeUnknown)
	}
	if svcErr.Message != "upstream exploded" {
		t.Errorf("Message = %q, want raw body", svcErr.Message)
	}
}

func TestSendRequestTimesOut(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(server.URL, 50*time.Millisecond)
	start := time.Now()
	err := client.SendRequest(context.Background(), http.MethodPost, "routing/evaluate", nil, nil)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("SendRequest() error = nil, want timeout")
	}
	if elapsed > time.Second {
		t.Errorf("SendRequest() took %v, want prompt timeout failure", elapsed)
	}
}

type memoryEventStore struct {
	events []*models.RoutingEvent
	fail   bool
}

func (s *memoryEventStore) Save(_ context.Context, event *models.RoutingEvent) error {
	if s.fail {
		return errors.New("event store down")
	}
	s.events = append(s.events, event)
	return nil
}

func TestSendRecordedCapturesEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"evaluated_output":[{"gateway_name":"stripe"}]}`))
	}))
	defer server.Close()

	store := &memoryEventStore{}
	recorder := NewRecorder(store, EngineDecision)
	client := NewClient(server.URL, time.Second)

	info := CallInfo{
		Flow:       FlowEvaluate,
		MerchantID: "merchant_1",
		ProfileID:  "profile_1",
		PaymentID:  "pay_1",
		LogEnabled: true,
	}
	var resp EvaluateResponse
	err := client.SendRecorded(context.Background(), recorder, info, http.MethodPost, "routing/evaluate", &EvaluateRequest{CreatedBy: "profile_1"}, &resp)
	if err != nil {
		t.Fatalf("SendRecorded() error = %v", err)
	}

	if len(store.events) != 1 {
		t.Fatalf("captured %d events, want 1", len(store.events))
	}
	event := store.events[0]
	if event.Flow != FlowEvaluate || event.PaymentID != "pay_1" {
		t.Errorf("event = %+v", event)
	}
	if event.StatusCode != http.StatusOK {
		t.Errorf("event.StatusCode = %d, want 200", event.StatusCode)
	}
	if event.Error != "" {
		t.Errorf("event.Error = %q, want empty", event.Error)
	}
}

func TestSendRecordedCapturesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"boom"}`))
	}))
	defer server.Close()

	store := &memoryEventStore{}
	recorder := NewRecorder(store, EngineDecision)
	client := NewClient(server.URL, time.Second)

	info := CallInfo{Flow: FlowEvaluate, PaymentID: "pay_2", LogEnabled: true}
	err := client.SendRecorded(context.Background(), recorder, info, http.MethodPost, "routing/evaluate", nil, nil)
	if err == nil {
		t.Fatal("SendRecorded() error = nil, want service error")
	}

	if len(store.events) != 1 {
		t.Fatalf("captured %d events, want 1", len(store.events))
	}
	if store.events[0].Error == "" {
		t.Error("event.Error empty, want failure summary recorded")
	}
}

func TestSendRecordedStoreFailureDoesNotFailCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := &memoryEventStore{fail: true}
	recorder := NewRecorder(store, EngineDecision)
	client := NewClient(server.URL, time.Second)

	info := CallInfo{Flow: FlowEvaluate, LogEnabled: true}
	// Event capture is orthogonal: a broken store never fails the call.
	if err := client.SendRecorded(context.Background(), recorder, info, http.MethodPost, "routing/evaluate", nil, nil); err != nil {
		t.Errorf("SendRecorded() error = %v, want nil despite store failure", err)
	}
}

func TestSendRecordedLogDisabledSkipsStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := &memoryEventStore{}
	recorder := NewRecorder(store, EngineDecision)
	client := NewClient(server.URL, time.Second)

	info := CallInfo{Flow: FlowCreateRule, LogEnabled: false}
	if err := client.SendRecorded(context.Background(), recorder, info, http.MethodPost, "routing/create", nil, nil); err != nil {
		t.Fatalf("SendRecorded() error = %v", err)
	}
	if len(store.events) != 0 {
		t.Errorf("captured %d events with logging disabled, want 0", len(store.events))
	}
}

func TestEvaluateParametersFlattensFacts(t *testing.T) {
	method := "card"
	input := &models.BackendInput{
		Payment: models.PaymentInput{
			Amount:        2500,
			Currency:      "EUR",
			PaymentMethod: &method,
		},
		Metadata: map[string]string{"order_category": "electronics"},
	}

	params := EvaluateParameters(input)
	if params["amount"] != int64(2500) {
		t.Errorf("params[amount] = %v, want 2500", params["amount"])
	}
	if params["currency"] != "EUR" {
		t.Errorf("params[currency] = %v, want EUR", params["currency"])
	}
	if params["payment_method"] != "card" {
		t.Errorf("params[payment_method] = %v, want card", params["payment_method"])
	}
	if params["metadata.order_category"] != "electronics" {
		t.Errorf("params[metadata.order_category] = %v", params["metadata.order_category"])
	}
	if _, ok := params["card_bin"]; ok {
		t.Error("absent optional fact should not appear in parameters")
	}
}
