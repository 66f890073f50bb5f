package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionPayout  TransactionType = "payout"
	TransactionThreeDS TransactionType = "three_ds_authentication"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TransactionPayment, TransactionPayout, TransactionThreeDS:
		return TransactionType(s), nil
	}
	return "", &ConversionError{Field: "transaction_type", Value: s}
}

type AlgorithmKind string

const (
	AlgorithmSingle      AlgorithmKind = "single"
	AlgorithmPriority    AlgorithmKind = "priority"
	AlgorithmVolumeSplit AlgorithmKind = "volume_split"
	AlgorithmAdvanced    AlgorithmKind = "advanced"
	AlgorithmDynamic     AlgorithmKind = "dynamic"
)

// StaticRoutingAlgorithm is the tagged union persisted per profile. Exactly
// one is active per profile per transaction type at any time.
type StaticRoutingAlgorithm struct {
	Kind        AlgorithmKind             `json:"type"`
	Single      *RoutableConnectorChoice  `json:"single,omitempty"`
	Priority    []RoutableConnectorChoice `json:"priority,omitempty"`
	VolumeSplit []VolumeSplitConnector    `json:"volume_split,omitempty"`
	Program     *Program                  `json:"program,omitempty"`
}

// Validate checks structural soundness before the algorithm is persisted.
// Volume splits must partition 100% of traffic; the type system does not
// enforce the sum.
func (a *StaticRoutingAlgorithm) Validate() error {
	switch a.Kind {
	case AlgorithmSingle:
		if a.Single == nil {
			return fmt.Errorf("single algorithm requires a connector")
		}
	case AlgorithmPriority:
		if len(a.Priority) == 0 {
			return fmt.Errorf("priority algorithm requires at least one connector")
		}
	case AlgorithmVolumeSplit:
		if err := ValidateVolumeSplit(a.VolumeSplit); err != nil {
			return err
		}
	case AlgorithmAdvanced:
		if a.Program == nil {
			return fmt.Errorf("advanced algorithm requires a program")
		}
		for _, rule := range a.Program.Rules {
			if err := validateOutput(rule.Output); err != nil {
				return fmt.Errorf("rule %q: %w", rule.Name, err)
			}
		}
		return validateOutput(a.Program.DefaultSelection)
	default:
		return fmt.Errorf("unknown algorithm kind %q", a.Kind)
	}
	return nil
}

func ValidateVolumeSplit(splits []VolumeSplitConnector) error {
	if len(splits) == 0 {
		return fmt.Errorf("volume split requires at least one branch")
	}
	total := 0
	for _, s := range splits {
		if s.Split < 0 || s.Split > 100 {
			return fmt.Errorf("split %d out of range [0,100]", s.Split)
		}
		total += s.Split
	}
	if total != 100 {
		return fmt.Errorf("volume split percentages sum to %d, want 100", total)
	}
	return nil
}

func validateOutput(out Output) error {
	switch out.Kind {
	case OutputSingle:
		if out.Single == nil {
			return fmt.Errorf("single output requires a connector")
		}
	case OutputPriority:
		if len(out.Priority) == 0 {
			return fmt.Errorf("priority output requires at least one connector")
		}
	case OutputVolumeSplit:
		return ValidateVolumeSplit(out.VolumeSplit)
	case OutputVolumeSplitPriority:
		if len(out.VolumeSplitPriority) == 0 {
			return fmt.Errorf("volume split priority output requires at least one branch")
		}
		total := 0
		for _, s := range out.VolumeSplitPriority {
			if s.Split < 0 || s.Split > 100 {
				return fmt.Errorf("split %d out of range [0,100]", s.Split)
			}
			total += s.Split
		}
		if total != 100 {
			return fmt.Errorf("volume split percentages sum to %d, want 100", total)
		}
	default:
		return fmt.Errorf("unknown output kind %q", out.Kind)
	}
	return nil
}

// RoutingAlgorithmRecord is the append-only persisted form of an algorithm.
// Updates create a new record id; the profile reference is repointed, never
// mutated in place.
type RoutingAlgorithmRecord struct {
	ID           string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProfileID    string          `json:"profile_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	AlgorithmFor TransactionType `json:"algorithm_for" gorm:"not null;default:'payment'"`
	Kind         AlgorithmKind   `json:"kind" gorm:"not null"`
	Algorithm    JSON            `json:"algorithm" gorm:"type:jsonb;not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	ModifiedAt   time.Time       `json:"modified_at" gorm:"autoUpdateTime"`
}

func (RoutingAlgorithmRecord) TableName() string {
	return "routing_algorithms"
}

// StaticAlgorithm deserializes the stored payload. A record that no longer
// parses is corrupt configuration, surfaced as an internal error by callers.
func (r *RoutingAlgorithmRecord) StaticAlgorithm() (*StaticRoutingAlgorithm, error) {
	raw, err := json.Marshal(r.Algorithm)
	if err != nil {
		return nil, err
	}
	var algorithm StaticRoutingAlgorithm
	if err := json.Unmarshal(raw, &algorithm); err != nil {
		return nil, err
	}
	return &algorithm, nil
}

func NewAlgorithmRecord(profileID, name, description string, txnType TransactionType, algorithm *StaticRoutingAlgorithm) (*RoutingAlgorithmRecord, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	payload, err := ToJSON(algorithm)
	if err != nil {
		return nil, err
	}
	return &RoutingAlgorithmRecord{
		ProfileID:    profileID,
		Name:         name,
		Description:  description,
		AlgorithmFor: txnType,
		Kind:         algorithm.Kind,
		Algorithm:    payload,
	}, nil
}
