package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func NewAPIErrorWithDetails(code int, message, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrInvalidRequest     = NewAPIError(http.StatusBadRequest, "Invalid request")
	ErrNotFound           = NewAPIError(http.StatusNotFound, "Resource not found")
	ErrInternalServer     = NewAPIError(http.StatusInternalServerError, "Internal server error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Service unavailable")
	ErrGatewayTimeout     = NewAPIError(http.StatusGatewayTimeout, "Gateway timeout")
)

// Routing configuration lifecycle errors. These are administrative failures
// with no fallback; they surface to the caller as-is.
var (
	ErrProfileNotFound         = NewAPIError(http.StatusNotFound, "Business profile not found")
	ErrAlgorithmNotFound       = NewAPIError(http.StatusNotFound, "Routing algorithm not found")
	ErrAlgorithmAlreadyActive  = NewAPIError(http.StatusPreconditionFailed, "Routing algorithm is already active")
	ErrAlgorithmNotActive      = NewAPIError(http.StatusPreconditionFailed, "No routing algorithm is active")
	ErrTransactionTypeMismatch = NewAPIError(http.StatusPreconditionFailed, "Algorithm transaction type does not match request")
	ErrAlgorithmOwnership      = NewAPIError(http.StatusPreconditionFailed, "Routing algorithm belongs to a different profile")
	ErrInvalidAlgorithm        = NewAPIError(http.StatusPreconditionFailed, "Routing algorithm is invalid")
	ErrInvalidVolumeSplit      = NewAPIError(http.StatusPreconditionFailed, "Volume split configuration is invalid")
	ErrConnectorConversion     = NewAPIError(http.StatusBadRequest, "Connector name is not routable")
	ErrConfigDeserialization   = NewAPIError(http.StatusInternalServerError, "Persisted routing configuration failed to deserialize")
)

// Per-transaction evaluation errors. These are recovered locally; the
// pipeline degrades to the next-best signal instead of failing the payment.
var (
	ErrDecisionServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Decision service unavailable")
	ErrAdaptiveServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Adaptive routing service unavailable")
	ErrNoEligibleConnectors       = NewAPIError(http.StatusUnprocessableEntity, "No eligible connectors for this payment")
)

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

func WrapAPIError(err error, apiErr *APIError) error {
	return fmt.Errorf("%w: %s", apiErr, err.Error())
}

func GetHTTPStatusFromError(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}

func LogError(ctx context.Context, err error, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	fields["error"] = err.Error()

	Error(ctx, message, fields)
}
