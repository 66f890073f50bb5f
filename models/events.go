package models

import "time"

// RoutingEvent is one captured decision-service interaction: request,
// response, latency and correlation ids, persisted independently of the
// call's business outcome.
type RoutingEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Engine     string    `json:"routing_engine" gorm:"not null"`
	Flow       string    `json:"flow" gorm:"not null;index"`
	Method     string    `json:"method" gorm:"not null"`
	URL        string    `json:"url" gorm:"not null"`
	Request    JSON      `json:"request" gorm:"type:jsonb"`
	Response   JSON      `json:"response" gorm:"type:jsonb"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error"`
	LatencyMS  int64     `json:"latency_ms"`
	TenantID   string    `json:"tenant_id" gorm:"index"`
	MerchantID string    `json:"merchant_id" gorm:"index"`
	ProfileID  string    `json:"profile_id" gorm:"index"`
	PaymentID  string    `json:"payment_id" gorm:"index"`
	RequestID  string    `json:"request_id"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (RoutingEvent) TableName() string {
	return "routing_events"
}
