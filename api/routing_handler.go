package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/malwarebo/switchboard/models"
	"github.com/malwarebo/switchboard/services"
	"github.com/malwarebo/switchboard/utils"
)

// RoutingHandler exposes the routing configuration lifecycle and the
// per-transaction selection pipeline over HTTP.
type RoutingHandler struct {
	lifecycle *services.RoutingLifecycleService
	selection *services.SelectionService
}

func NewRoutingHandler(lifecycle *services.RoutingLifecycleService, selection *services.SelectionService) *RoutingHandler {
	return &RoutingHandler{
		lifecycle: lifecycle,
		selection: selection,
	}
}

type createAlgorithmRequest struct {
	Name            string                         `json:"name"`
	Description     string                         `json:"description"`
	TransactionType string                         `json:"transaction_type"`
	Algorithm       *models.StaticRoutingAlgorithm `json:"algorithm"`
}

func (h *RoutingHandler) HandleCreateAlgorithm(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	var request createAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if request.Name == "" || request.Algorithm == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name and algorithm are required"})
		return
	}
	txnType, err := parseTransactionType(request.TransactionType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	record, err := h.lifecycle.CreateAlgorithm(r.Context(), profileID, request.Name, request.Description, txnType, request.Algorithm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type activationRequest struct {
	TransactionType string `json:"transaction_type"`
}

func (h *RoutingHandler) HandleActivateAlgorithm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var request activationRequest
	if r.Body != nil {
		// Body optional; payments are the default transaction type.
		_ = json.NewDecoder(r.Body).Decode(&request)
	}
	txnType, err := parseTransactionType(request.TransactionType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.lifecycle.LinkAlgorithm(r.Context(), vars["profile_id"], vars["algorithm_id"], txnType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"profile_id":   vars["profile_id"],
		"algorithm_id": vars["algorithm_id"],
		"status":       "active",
	})
}

func (h *RoutingHandler) HandleDeactivateAlgorithm(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	var request activationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&request)
	}
	txnType, err := parseTransactionType(request.TransactionType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.lifecycle.UnlinkAlgorithm(r.Context(), profileID, txnType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"profile_id": profileID,
		"status":     "inactive",
	})
}

func (h *RoutingHandler) HandleListAlgorithms(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	records, err := h.lifecycle.ListAlgorithms(r.Context(), profileID, clampLimit(limit), offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"algorithms": records,
		"count":      len(records),
	})
}

func (h *RoutingHandler) HandleGetActiveAlgorithm(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	txnType, err := parseTransactionType(r.URL.Query().Get("transaction_type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	record, err := h.lifecycle.GetActiveAlgorithm(r.Context(), profileID, txnType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type toggleDynamicRequest struct {
	Feature string `json:"feature"`
}

func (h *RoutingHandler) HandleToggleDynamicRouting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind, err := models.ParseDynamicStrategyKind(vars["strategy"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var request toggleDynamicRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	feature, err := parseDynamicFeature(request.Feature)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ref, err := h.lifecycle.ToggleDynamicRouting(r.Context(), vars["profile_id"], kind, feature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *RoutingHandler) HandleUpdateDynamicConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind, err := models.ParseDynamicStrategyKind(vars["strategy"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	record, err := h.lifecycle.UpdateDynamicConfig(r.Context(), vars["profile_id"], kind, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type dynamicSplitRequest struct {
	SplitPercent *int `json:"split_percent"`
}

func (h *RoutingHandler) HandleSetDynamicSplit(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	var request dynamicSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	ref, err := h.lifecycle.SetDynamicSplitPercent(r.Context(), profileID, request.SplitPercent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

type selectConnectorsRequest struct {
	MerchantID      string              `json:"merchant_id"`
	PaymentID       string              `json:"payment_id"`
	TransactionType string              `json:"transaction_type"`
	Input           models.BackendInput `json:"input"`
}

func (h *RoutingHandler) HandleSelectConnectors(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	var request selectConnectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if request.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "payment_id is required"})
		return
	}
	txnType, err := parseTransactionType(request.TransactionType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.selection.SelectConnectors(r.Context(), &services.SelectionRequest{
		ProfileID:       profileID,
		MerchantID:      request.MerchantID,
		PaymentID:       request.PaymentID,
		TransactionType: txnType,
		Input:           request.Input,
	})
	if err != nil {
		utils.LogError(r.Context(), err, "Connector selection failed", map[string]interface{}{
			"payment_id": request.PaymentID,
		})
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type outcomeRequest struct {
	MerchantID string              `json:"merchant_id"`
	PaymentID  string              `json:"payment_id"`
	Connector  string              `json:"connector"`
	Success    bool                `json:"success"`
	Input      models.BackendInput `json:"input"`
}

func (h *RoutingHandler) HandleUpdateOutcome(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	var request outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	connector, err := models.ParseRoutableConnector(request.Connector)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err = h.selection.UpdateOutcome(r.Context(), &services.OutcomeRequest{
		ProfileID:  profileID,
		MerchantID: request.MerchantID,
		PaymentID:  request.PaymentID,
		Connector:  connector,
		Success:    request.Success,
		Input:      request.Input,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func parseTransactionType(s string) (models.TransactionType, error) {
	if s == "" {
		return models.TransactionPayment, nil
	}
	return models.ParseTransactionType(s)
}

func parseDynamicFeature(s string) (models.DynamicRoutingFeature, error) {
	switch models.DynamicRoutingFeature(s) {
	case models.FeatureNone, models.FeatureMetrics, models.FeatureDynamicSelection:
		return models.DynamicRoutingFeature(s), nil
	}
	return "", &models.ConversionError{Field: "feature", Value: s}
}
