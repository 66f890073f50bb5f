package models

// BackendInput is the fact bag fed to the rule evaluator. Optional facts that
// are absent never match a comparison; they do not error.
type BackendInput struct {
	Payment  PaymentInput      `json:"payment"`
	Mandate  MandateInput      `json:"mandate"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PaymentInput struct {
	Amount             int64   `json:"amount"`
	Currency           string  `json:"currency"`
	AuthenticationType *string `json:"authentication_type,omitempty"`
	CardBin            *string `json:"card_bin,omitempty"`
	CaptureMethod      *string `json:"capture_method,omitempty"`
	Country            *string `json:"business_country,omitempty"`
	BusinessLabel      *string `json:"business_label,omitempty"`
	SetupFutureUsage   *string `json:"setup_future_usage,omitempty"`
	PaymentMethod      *string `json:"payment_method,omitempty"`
	PaymentMethodType  *string `json:"payment_method_type,omitempty"`
	CardNetwork        *string `json:"card_network,omitempty"`
}

type MandateInput struct {
	MandateType           *string `json:"mandate_type,omitempty"`
	MandateAcceptanceType *string `json:"mandate_acceptance_type,omitempty"`
	PaymentType           *string `json:"payment_type,omitempty"`
}

// Fact looks up a named fact. The second return reports presence; the first
// is either an int64 (numeric facts) or a string.
func (in *BackendInput) Fact(name string) (interface{}, bool) {
	switch name {
	case "amount":
		return in.Payment.Amount, true
	case "currency":
		return in.Payment.Currency, true
	case "authentication_type":
		return optional(in.Payment.AuthenticationType)
	case "card_bin":
		return optional(in.Payment.CardBin)
	case "capture_method":
		return optional(in.Payment.CaptureMethod)
	case "business_country":
		return optional(in.Payment.Country)
	case "business_label":
		return optional(in.Payment.BusinessLabel)
	case "setup_future_usage":
		return optional(in.Payment.SetupFutureUsage)
	case "payment_method":
		return optional(in.Payment.PaymentMethod)
	case "payment_method_type":
		return optional(in.Payment.PaymentMethodType)
	case "card_network":
		return optional(in.Payment.CardNetwork)
	case "mandate_type":
		return optional(in.Mandate.MandateType)
	case "mandate_acceptance_type":
		return optional(in.Mandate.MandateAcceptanceType)
	case "payment_type":
		return optional(in.Mandate.PaymentType)
	}
	return nil, false
}

// MetadataFact looks up a free-form metadata key.
func (in *BackendInput) MetadataFact(key string) (string, bool) {
	v, ok := in.Metadata[key]
	return v, ok
}

func optional(s *string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}
