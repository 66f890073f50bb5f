package routing

import (
	"testing"

	"github.com/malwarebo/switchboard/models"
)

func choice(c models.RoutableConnector) models.RoutableConnectorChoice {
	return models.RoutableConnectorChoice{Connector: c, Kind: models.SelectionAlgorithm}
}

func connectors(choices []models.RoutableConnectorChoice) []models.RoutableConnector {
	out := make([]models.RoutableConnector, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.Connector)
	}
	return out
}

func sameConnectors(got []models.RoutableConnectorChoice, want []models.RoutableConnector) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Connector != want[i] {
			return false
		}
	}
	return true
}

func amountCurrencyProgram() *models.Program {
	return &models.Program{
		DefaultSelection: models.Output{
			Kind:     models.OutputPriority,
			Priority: []models.RoutableConnectorChoice{choice(models.ConnectorCheckout)},
		},
		Rules: []models.Rule{
			{
				Name: "high value USD",
				Output: models.Output{
					Kind: models.OutputPriority,
					Priority: []models.RoutableConnectorChoice{
						choice(models.ConnectorAdyen),
						choice(models.ConnectorStripe),
					},
				},
				Statements: []models.IfStatement{
					{
						Condition: []models.Comparison{
							{
								Lhs:        "amount",
								Comparison: models.CompareGreaterThan,
								Value:      models.Value{Kind: models.ValueNumber, Number: 1000},
							},
							{
								Lhs:        "currency",
								Comparison: models.CompareEqual,
								Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "USD"},
							},
						},
					},
				},
			},
		},
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	program := amountCurrencyProgram()

	tests := []struct {
		name   string
		amount int64
		want   []models.RoutableConnector
	}{
		{
			name:   "rule matches",
			amount: 1500,
			want:   []models.RoutableConnector{models.ConnectorAdyen, models.ConnectorStripe},
		},
		{
			name:   "amount below threshold falls to default",
			amount: 500,
			want:   []models.RoutableConnector{models.ConnectorCheckout},
		},
		{
			name:   "boundary amount is not greater than",
			amount: 1000,
			want:   []models.RoutableConnector{models.ConnectorCheckout},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &models.BackendInput{
				Payment: models.PaymentInput{Amount: tt.amount, Currency: "USD"},
			}
			got, err := Evaluate(program, input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !sameConnectors(got, tt.want) {
				t.Errorf("Evaluate() = %v, want %v", connectors(got), tt.want)
			}
		})
	}
}

func TestEvaluateIsDeterministicForPriorityOutputs(t *testing.T) {
	program := amountCurrencyProgram()
	input := &models.BackendInput{
		Payment: models.PaymentInput{Amount: 2000, Currency: "USD"},
	}

	first, err := Evaluate(program, input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := Evaluate(program, input)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !sameConnectors(got, connectors(first)) {
			t.Fatalf("Evaluate() varied between identical calls: %v vs %v", connectors(got), connectors(first))
		}
	}
}

func TestAbsentFactNeverMatches(t *testing.T) {
	cardNetwork := "visa"
	program := &models.Program{
		DefaultSelection: models.Output{
			Kind:     models.OutputPriority,
			Priority: []models.RoutableConnectorChoice{choice(models.ConnectorPaypal)},
		},
		Rules: []models.Rule{
			{
				Name: "visa only",
				Output: models.Output{
					Kind:   models.OutputSingle,
					Single: &models.RoutableConnectorChoice{Connector: models.ConnectorStripe},
				},
				Statements: []models.IfStatement{
					{
						Condition: []models.Comparison{
							{
								Lhs:        "card_network",
								Comparison: models.CompareEqual,
								Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "visa"},
							},
						},
					},
				},
			},
		},
	}

	// Fact absent: the rule must not match, even for a not_equal operator.
	got, err := Evaluate(program, &models.BackendInput{
		Payment: models.PaymentInput{Amount: 100, Currency: "USD"},
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !sameConnectors(got, []models.RoutableConnector{models.ConnectorPaypal}) {
		t.Errorf("Evaluate() with absent fact = %v, want default [paypal]", connectors(got))
	}

	got, err = Evaluate(program, &models.BackendInput{
		Payment: models.PaymentInput{Amount: 100, Currency: "USD", CardNetwork: &cardNetwork},
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !sameConnectors(got, []models.RoutableConnector{models.ConnectorStripe}) {
		t.Errorf("Evaluate() with present fact = %v, want [stripe]", connectors(got))
	}
}

func TestAbsentFactNotEqualStillFalse(t *testing.T) {
	cmp := models.Comparison{
		Lhs:        "payment_method",
		Comparison: models.CompareNotEqual,
		Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "card"},
	}
	input := &models.BackendInput{Payment: models.PaymentInput{Amount: 1, Currency: "EUR"}}

	if comparisonMatches(&cmp, input) {
		t.Error("comparisonMatches() = true for absent fact, want false")
	}
}

func TestStatementConditionsAreConjunctive(t *testing.T) {
	method := "card"
	program := &models.Program{
		DefaultSelection: models.Output{
			Kind:   models.OutputSingle,
			Single: &models.RoutableConnectorChoice{Connector: models.ConnectorCheckout},
		},
		Rules: []models.Rule{
			{
				Name: "EUR cards",
				Output: models.Output{
					Kind:   models.OutputSingle,
					Single: &models.RoutableConnectorChoice{Connector: models.ConnectorAdyen},
				},
				Statements: []models.IfStatement{
					{
						Condition: []models.Comparison{
							{
								Lhs:        "currency",
								Comparison: models.CompareEqual,
								Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "EUR"},
							},
							{
								Lhs:        "payment_method",
								Comparison: models.CompareEqual,
								Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "card"},
							},
						},
					},
				},
			},
		},
	}

	tests := []struct {
		name     string
		currency string
		method   *string
		want     models.RoutableConnector
	}{
		{"both hold", "EUR", &method, models.ConnectorAdyen},
		{"only currency holds", "EUR", nil, models.ConnectorCheckout},
		{"only method holds", "USD", &method, models.ConnectorCheckout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(program, &models.BackendInput{
				Payment: models.PaymentInput{Amount: 10, Currency: tt.currency, PaymentMethod: tt.method},
			})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !sameConnectors(got, []models.RoutableConnector{tt.want}) {
				t.Errorf("Evaluate() = %v, want [%s]", connectors(got), tt.want)
			}
		})
	}
}

func TestStatementsAreDisjunctive(t *testing.T) {
	rule := models.Rule{
		Name: "either currency",
		Statements: []models.IfStatement{
			{
				Condition: []models.Comparison{{
					Lhs:        "currency",
					Comparison: models.CompareEqual,
					Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "USD"},
				}},
			},
			{
				Condition: []models.Comparison{{
					Lhs:        "currency",
					Comparison: models.CompareEqual,
					Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "EUR"},
				}},
			},
		},
	}

	for _, currency := range []string{"USD", "EUR"} {
		input := &models.BackendInput{Payment: models.PaymentInput{Amount: 1, Currency: currency}}
		if !ruleMatches(&rule, input) {
			t.Errorf("ruleMatches() = false for %s, want true", currency)
		}
	}
	input := &models.BackendInput{Payment: models.PaymentInput{Amount: 1, Currency: "GBP"}}
	if ruleMatches(&rule, input) {
		t.Error("ruleMatches() = true for GBP, want false")
	}
}

func TestNestedStatementsMustAllHold(t *testing.T) {
	method := "card"
	stmt := models.IfStatement{
		Condition: []models.Comparison{{
			Lhs:        "currency",
			Comparison: models.CompareEqual,
			Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "USD"},
		}},
		Nested: []models.IfStatement{
			{
				Condition: []models.Comparison{{
					Lhs:        "payment_method",
					Comparison: models.CompareEqual,
					Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "card"},
				}},
			},
			{
				Condition: []models.Comparison{{
					Lhs:        "amount",
					Comparison: models.CompareLessThan,
					Value:      models.Value{Kind: models.ValueNumber, Number: 5000},
				}},
			},
		},
	}

	match := &models.BackendInput{
		Payment: models.PaymentInput{Amount: 100, Currency: "USD", PaymentMethod: &method},
	}
	if !statementMatches(&stmt, match) {
		t.Error("statementMatches() = false, want true when all nested hold")
	}

	tooBig := &models.BackendInput{
		Payment: models.PaymentInput{Amount: 9000, Currency: "USD", PaymentMethod: &method},
	}
	if statementMatches(&stmt, tooBig) {
		t.Error("statementMatches() = true, want false when one nested fails")
	}
}

func TestNumberArrayMembership(t *testing.T) {
	tests := []struct {
		name string
		op   models.ComparisonType
		fact int64
		want bool
	}{
		{"equal in set", models.CompareEqual, 840, true},
		{"equal not in set", models.CompareEqual, 978, false},
		{"not_equal not in set", models.CompareNotEqual, 978, true},
		{"not_equal in set", models.CompareNotEqual, 840, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := models.Comparison{
				Lhs:        "amount",
				Comparison: tt.op,
				Value:      models.Value{Kind: models.ValueNumberArray, NumberArray: []int64{356, 840}},
			}
			if got := numberMatches(tt.fact, &cmp); got != tt.want {
				t.Errorf("numberMatches(%d) = %v, want %v", tt.fact, got, tt.want)
			}
		})
	}
}

func TestRangedNumberComparisonsAllMustHold(t *testing.T) {
	cmp := models.Comparison{
		Lhs:        "amount",
		Comparison: models.CompareEqual,
		Value: models.Value{
			Kind: models.ValueNumberComparisons,
			NumberComparisons: []models.NumberComparison{
				{ComparisonType: models.CompareGreaterThanEqual, Number: 100},
				{ComparisonType: models.CompareLessThan, Number: 1000},
			},
		},
	}

	tests := []struct {
		fact int64
		want bool
	}{
		{99, false},
		{100, true},
		{999, true},
		{1000, false},
	}
	for _, tt := range tests {
		if got := numberMatches(tt.fact, &cmp); got != tt.want {
			t.Errorf("numberMatches(%d) = %v, want %v", tt.fact, got, tt.want)
		}
	}
}

func TestMetadataComparison(t *testing.T) {
	cmp := models.Comparison{
		Lhs:        "metadata",
		Comparison: models.CompareEqual,
		Value: models.Value{
			Kind:            models.ValueMetadata,
			MetadataVariant: &models.MetadataValue{Key: "order_category", Value: "electronics"},
		},
	}

	match := &models.BackendInput{Metadata: map[string]string{"order_category": "electronics"}}
	if !comparisonMatches(&cmp, match) {
		t.Error("comparisonMatches() = false for matching metadata, want true")
	}

	miss := &models.BackendInput{Metadata: map[string]string{"order_category": "fashion"}}
	if comparisonMatches(&cmp, miss) {
		t.Error("comparisonMatches() = true for mismatched metadata, want false")
	}

	absent := &models.BackendInput{}
	if comparisonMatches(&cmp, absent) {
		t.Error("comparisonMatches() = true for absent metadata key, want false")
	}
}

func TestOrderingOperatorsDoNotApplyToStrings(t *testing.T) {
	cmp := models.Comparison{
		Lhs:        "currency",
		Comparison: models.CompareGreaterThan,
		Value:      models.Value{Kind: models.ValueEnum, EnumVariant: "AAA"},
	}
	input := &models.BackendInput{Payment: models.PaymentInput{Currency: "USD"}}
	if comparisonMatches(&cmp, input) {
		t.Error("comparisonMatches() = true for ordered string comparison, want false")
	}
}

func TestFlattenAlgorithmVariants(t *testing.T) {
	input := &models.BackendInput{Payment: models.PaymentInput{Amount: 10, Currency: "USD"}}

	single := &models.StaticRoutingAlgorithm{
		Kind:   models.AlgorithmSingle,
		Single: &models.RoutableConnectorChoice{Connector: models.ConnectorStripe},
	}
	got, err := FlattenAlgorithm(single, input)
	if err != nil {
		t.Fatalf("FlattenAlgorithm(single) error = %v", err)
	}
	if !sameConnectors(got, []models.RoutableConnector{models.ConnectorStripe}) {
		t.Errorf("FlattenAlgorithm(single) = %v", connectors(got))
	}

	priority := &models.StaticRoutingAlgorithm{
		Kind: models.AlgorithmPriority,
		Priority: []models.RoutableConnectorChoice{
			choice(models.ConnectorAdyen),
			choice(models.ConnectorCheckout),
		},
	}
	got, err = FlattenAlgorithm(priority, input)
	if err != nil {
		t.Fatalf("FlattenAlgorithm(priority) error = %v", err)
	}
	if !sameConnectors(got, []models.RoutableConnector{models.ConnectorAdyen, models.ConnectorCheckout}) {
		t.Errorf("FlattenAlgorithm(priority) = %v", connectors(got))
	}

	unknown := &models.StaticRoutingAlgorithm{Kind: "bogus"}
	if _, err := FlattenAlgorithm(unknown, input); err == nil {
		t.Error("FlattenAlgorithm(unknown kind) error = nil, want error")
	}
}

func TestVolumeSplitDistribution(t *testing.T) {
	algorithm := &models.StaticRoutingAlgorithm{
		Kind: models.AlgorithmVolumeSplit,
		VolumeSplit: []models.VolumeSplitConnector{
			{Split: 70, Output: choice(models.ConnectorStripe)},
			{Split: 30, Output: choice(models.ConnectorAdyen)},
		},
	}
	input := &models.BackendInput{Payment: models.PaymentInput{Amount: 10, Currency: "USD"}}

	const samples = 10000
	counts := make(map[models.RoutableConnector]int)
	for i := 0; i < samples; i++ {
		got, err := FlattenAlgorithm(algorithm, input)
		if err != nil {
			t.Fatalf("FlattenAlgorithm() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("FlattenAlgorithm() returned %d choices, want 1", len(got))
		}
		counts[got[0].Connector]++
	}

	stripeShare := float64(counts[models.ConnectorStripe]) / samples
	if stripeShare < 0.65 || stripeShare > 0.75 {
		t.Errorf("stripe share = %.3f over %d samples, want ~0.70", stripeShare, samples)
	}
	if counts[models.ConnectorStripe]+counts[models.ConnectorAdyen] != samples {
		t.Errorf("unexpected connector outside the split: %v", counts)
	}
}

func TestVolumeSplitZeroWeightBranchNeverPicked(t *testing.T) {
	algorithm := &models.StaticRoutingAlgorithm{
		Kind: models.AlgorithmVolumeSplit,
		VolumeSplit: []models.VolumeSplitConnector{
			{Split: 100, Output: choice(models.ConnectorStripe)},
			{Split: 0, Output: choice(models.ConnectorAdyen)},
		},
	}
	input := &models.BackendInput{}

	for i := 0; i < 1000; i++ {
		got, err := FlattenAlgorithm(algorithm, input)
		if err != nil {
			t.Fatalf("FlattenAlgorithm() error = %v", err)
		}
		if got[0].Connector != models.ConnectorStripe {
			t.Fatalf("zero-weight branch selected on iteration %d", i)
		}
	}
}

func TestFlattenOutputVolumeSplitPriority(t *testing.T) {
	out := models.Output{
		Kind: models.OutputVolumeSplitPriority,
		VolumeSplitPriority: []models.VolumeSplitPriority{
			{
				Split: 100,
				Output: []models.RoutableConnectorChoice{
					choice(models.ConnectorAdyen),
					choice(models.ConnectorStripe),
				},
			},
			{Split: 0, Output: []models.RoutableConnectorChoice{choice(models.ConnectorCheckout)}},
		},
	}

	got, err := FlattenOutput(out)
	if err != nil {
		t.Fatalf("FlattenOutput() error = %v", err)
	}
	if !sameConnectors(got, []models.RoutableConnector{models.ConnectorAdyen, models.ConnectorStripe}) {
		t.Errorf("FlattenOutput() = %v, want [adyen stripe]", connectors(got))
	}
}
