package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every decision-service call. A timed-out call is a
// failure; the caller's fallback path engages. There is no retry here.
const DefaultTimeout = 5 * time.Second

// ErrorCode is the decision service's error code enumeration. The set is
// open-ended upstream; unknown codes map to CodeUnknown with the raw string
// preserved, so new upstream codes never fail deserialization.
type ErrorCode string

const (
	CodeRuleNotFound      ErrorCode = "RULE_NOT_FOUND"
	CodeRuleAlreadyActive ErrorCode = "RULE_ALREADY_ACTIVE"
	CodeInvalidRule       ErrorCode = "INVALID_RULE"
	CodeEvaluationFailed  ErrorCode = "EVALUATION_FAILED"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

var knownErrorCodes = map[ErrorCode]struct{}{
	CodeRuleNotFound:      {},
	CodeRuleAlreadyActive: {},
	CodeInvalidRule:       {},
	CodeEvaluationFailed:  {},
	CodeInternalError:     {},
}

// ServiceError is a decision-service-reported failure: code, message and an
// optional diagnostic payload.
type ServiceError struct {
	Code       ErrorCode       `json:"-"`
	RawCode    string          `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
	StatusCode int             `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.RawCode != "" {
		return fmt.Sprintf("decision service error %s: %s", e.RawCode, e.Message)
	}
	return fmt.Sprintf("decision service error (status %d): %s", e.StatusCode, e.Message)
}

func (e *ServiceError) UnmarshalJSON(data []byte) error {
	type alias ServiceError
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = ServiceError(a)
	e.Code = ErrorCode(e.RawCode)
	if _, ok := knownErrorCodes[e.Code]; !ok {
		e.Code = CodeUnknown
	}
	return nil
}

// Client is a generic request/response transport for the decision service
// and the adaptive scoring services. It serializes structured payloads,
// parses typed responses, and never panics or retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendRequest performs one call and decodes the response into out (which may
// be nil). Transport failures and non-2xx statuses come back as errors; the
// latter carry the parsed *ServiceError.
func (c *Client) SendRequest(ctx context.Context, method, path string, body, out interface{}) error {
	statusCode, respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if statusCode < 200 || statusCode >= 300 {
		return parseServiceError(statusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode decision service response: %w", err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("decision service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// The raw error body is parsed into the service error shape; bodies that are
// not valid JSON still surface as a ServiceError, never as a panic.
func parseServiceError(statusCode int, body []byte) error {
	svcErr := &ServiceError{StatusCode: statusCode}
	if len(body) > 0 {
		if err := json.Unmarshal(body, svcErr); err != nil {
			svcErr.Code = CodeUnknown
			svcErr.Message = strings.TrimSpace(string(body))
		}
	}
	if svcErr.Message == "" {
		svcErr.Message = http.StatusText(statusCode)
	}
	svcErr.StatusCode = statusCode
	return svcErr
}
