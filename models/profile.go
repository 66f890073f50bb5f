package models

import (
	"encoding/json"
	"time"
)

// BusinessProfile owns routing configuration for one merchant profile. The
// three active-algorithm pointers hold at most one algorithm id each; the
// dynamic routing refs layer on top of the active static algorithm.
type BusinessProfile struct {
	ID                     string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	MerchantID             string    `json:"merchant_id" gorm:"not null;index"`
	Name                   string    `json:"name" gorm:"not null"`
	ActiveRoutingID        *string   `json:"active_routing_id" gorm:"index"`
	ActivePayoutRoutingID  *string   `json:"active_payout_routing_id"`
	ActiveThreeDSRoutingID *string   `json:"active_three_ds_routing_id"`
	DynamicRouting         JSON      `json:"dynamic_routing" gorm:"type:jsonb"`
	DefaultFallback        JSON      `json:"default_fallback" gorm:"type:jsonb"`
	CreatedAt              time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}

// ActiveAlgorithmID returns the active static algorithm pointer for one
// transaction type.
func (p *BusinessProfile) ActiveAlgorithmID(txnType TransactionType) *string {
	switch txnType {
	case TransactionPayout:
		return p.ActivePayoutRoutingID
	case TransactionThreeDS:
		return p.ActiveThreeDSRoutingID
	default:
		return p.ActiveRoutingID
	}
}

// DynamicRoutingRef deserializes the per-profile dynamic pointer set. An
// unset column yields an empty ref set, not an error.
func (p *BusinessProfile) DynamicRoutingRef() (*DynamicRoutingAlgorithmRef, error) {
	if p.DynamicRouting == nil {
		return &DynamicRoutingAlgorithmRef{}, nil
	}
	raw, err := json.Marshal(p.DynamicRouting)
	if err != nil {
		return nil, err
	}
	var ref DynamicRoutingAlgorithmRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// FallbackChoices deserializes the merchant-configured default connector
// list. Invalid connector names fail the conversion; they are never dropped.
func (p *BusinessProfile) FallbackChoices() ([]RoutableConnectorChoice, error) {
	if p.DefaultFallback == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p.DefaultFallback["connectors"])
	if err != nil {
		return nil, err
	}
	var infos []ConnectorInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, err
	}
	return ChoicesFromInfo(infos)
}
