package models

import (
	"errors"
	"testing"
)

func TestParseRoutableConnector(t *testing.T) {
	tests := []struct {
		input   string
		want    RoutableConnector
		wantErr bool
	}{
		{"stripe", ConnectorStripe, false},
		{"adyen", ConnectorAdyen, false},
		{"authorizenet", ConnectorAuthorizeNet, false},
		{"Stripe", "", true},
		{"unknown_gateway", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRoutableConnector(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRoutableConnector(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRoutableConnector(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConversionErrorCarriesValue(t *testing.T) {
	_, err := ParseRoutableConnector("paypal2")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("ParseRoutableConnector() error type = %T, want *ConversionError", err)
	}
	if convErr.Value != "paypal2" {
		t.Errorf("ConversionError.Value = %q, want %q", convErr.Value, "paypal2")
	}
}

func TestChoicesFromInfoFailsOnFirstUnknown(t *testing.T) {
	accountID := "mca_1"
	infos := []ConnectorInfo{
		{Connector: "stripe", AccountID: &accountID},
		{Connector: "not_a_gateway"},
		{Connector: "adyen"},
	}

	// One bad entry fails the whole conversion; nothing is silently dropped.
	choices, err := ChoicesFromInfo(infos)
	if err == nil {
		t.Fatal("ChoicesFromInfo() error = nil, want conversion error")
	}
	if choices != nil {
		t.Errorf("ChoicesFromInfo() = %v, want nil on error", choices)
	}
}

func TestChoicesRoundTrip(t *testing.T) {
	accountID := "mca_42"
	infos := []ConnectorInfo{
		{Connector: "checkout", AccountID: &accountID},
		{Connector: "worldpay"},
	}

	choices, err := ChoicesFromInfo(infos)
	if err != nil {
		t.Fatalf("ChoicesFromInfo() error = %v", err)
	}
	if len(choices) != 2 {
		t.Fatalf("ChoicesFromInfo() len = %d, want 2", len(choices))
	}
	if choices[0].Connector != ConnectorCheckout || *choices[0].MerchantConnectorID != accountID {
		t.Errorf("ChoicesFromInfo()[0] = %+v", choices[0])
	}
	if choices[0].Kind != SelectionAlgorithm {
		t.Errorf("ChoicesFromInfo()[0].Kind = %v, want %v", choices[0].Kind, SelectionAlgorithm)
	}

	back := ChoicesToInfo(choices)
	if back[0].Connector != "checkout" || *back[0].AccountID != accountID || back[1].Connector != "worldpay" {
		t.Errorf("ChoicesToInfo() = %+v", back)
	}
}

func TestValidateVolumeSplit(t *testing.T) {
	tests := []struct {
		name    string
		splits  []VolumeSplitConnector
		wantErr bool
	}{
		{
			name: "sums to 100",
			splits: []VolumeSplitConnector{
				{Split: 60, Output: RoutableConnectorChoice{Connector: ConnectorStripe}},
				{Split: 40, Output: RoutableConnectorChoice{Connector: ConnectorAdyen}},
			},
			wantErr: false,
		},
		{
			name: "sums under 100",
			splits: []VolumeSplitConnector{
				{Split: 60, Output: RoutableConnectorChoice{Connector: ConnectorStripe}},
				{Split: 30, Output: RoutableConnectorChoice{Connector: ConnectorAdyen}},
			},
			wantErr: true,
		},
		{
			name: "negative split",
			splits: []VolumeSplitConnector{
				{Split: 110, Output: RoutableConnectorChoice{Connector: ConnectorStripe}},
				{Split: -10, Output: RoutableConnectorChoice{Connector: ConnectorAdyen}},
			},
			wantErr: true,
		},
		{
			name:    "empty",
			splits:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVolumeSplit(tt.splits)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVolumeSplit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStaticAlgorithmRoundTrip(t *testing.T) {
	algorithm := &StaticRoutingAlgorithm{
		Kind: AlgorithmPriority,
		Priority: []RoutableConnectorChoice{
			{Connector: ConnectorStripe},
			{Connector: ConnectorAdyen},
		},
	}

	record, err := NewAlgorithmRecord("profile_1", "main", "", TransactionPayment, algorithm)
	if err != nil {
		t.Fatalf("NewAlgorithmRecord() error = %v", err)
	}
	if record.Kind != AlgorithmPriority {
		t.Errorf("record.Kind = %v, want %v", record.Kind, AlgorithmPriority)
	}

	got, err := record.StaticAlgorithm()
	if err != nil {
		t.Fatalf("StaticAlgorithm() error = %v", err)
	}
	if len(got.Priority) != 2 || got.Priority[0].Connector != ConnectorStripe {
		t.Errorf("StaticAlgorithm() = %+v", got)
	}
}

func TestNewAlgorithmRecordRejectsInvalid(t *testing.T) {
	algorithm := &StaticRoutingAlgorithm{
		Kind: AlgorithmVolumeSplit,
		VolumeSplit: []VolumeSplitConnector{
			{Split: 50, Output: RoutableConnectorChoice{Connector: ConnectorStripe}},
		},
	}
	if _, err := NewAlgorithmRecord("profile_1", "bad split", "", TransactionPayment, algorithm); err == nil {
		t.Error("NewAlgorithmRecord() error = nil, want volume split validation error")
	}
}

func TestBusinessProfileActiveAlgorithmID(t *testing.T) {
	paymentID := "algo_pay"
	payoutID := "algo_out"
	profile := &BusinessProfile{
		ActiveRoutingID:       &paymentID,
		ActivePayoutRoutingID: &payoutID,
	}

	if got := profile.ActiveAlgorithmID(TransactionPayment); got == nil || *got != paymentID {
		t.Errorf("ActiveAlgorithmID(payment) = %v, want %s", got, paymentID)
	}
	if got := profile.ActiveAlgorithmID(TransactionPayout); got == nil || *got != payoutID {
		t.Errorf("ActiveAlgorithmID(payout) = %v, want %s", got, payoutID)
	}
	if got := profile.ActiveAlgorithmID(TransactionThreeDS); got != nil {
		t.Errorf("ActiveAlgorithmID(three_ds) = %v, want nil", got)
	}
}

func TestFallbackChoices(t *testing.T) {
	profile := &BusinessProfile{
		DefaultFallback: JSON{
			"connectors": []interface{}{
				map[string]interface{}{"gateway_name": "stripe"},
				map[string]interface{}{"gateway_name": "adyen"},
			},
		},
	}

	choices, err := profile.FallbackChoices()
	if err != nil {
		t.Fatalf("FallbackChoices() error = %v", err)
	}
	if len(choices) != 2 || choices[0].Connector != ConnectorStripe || choices[1].Connector != ConnectorAdyen {
		t.Errorf("FallbackChoices() = %+v", choices)
	}

	bad := &BusinessProfile{
		DefaultFallback: JSON{
			"connectors": []interface{}{
				map[string]interface{}{"gateway_name": "bogus"},
			},
		},
	}
	if _, err := bad.FallbackChoices(); err == nil {
		t.Error("FallbackChoices() error = nil for unknown connector, want error")
	}

	empty := &BusinessProfile{}
	choices, err = empty.FallbackChoices()
	if err != nil || choices != nil {
		t.Errorf("FallbackChoices() on empty profile = %v, %v; want nil, nil", choices, err)
	}
}
