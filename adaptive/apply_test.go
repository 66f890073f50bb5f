package adaptive

import (
	"testing"

	"github.com/malwarebo/switchboard/models"
)

func candidates(names ...models.RoutableConnector) []models.RoutableConnectorChoice {
	out := make([]models.RoutableConnectorChoice, 0, len(names))
	for _, n := range names {
		out = append(out, models.RoutableConnectorChoice{Connector: n})
	}
	return out
}

func order(choices []models.RoutableConnectorChoice) []models.RoutableConnector {
	out := make([]models.RoutableConnector, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.Connector)
	}
	return out
}

func sameOrder(got []models.RoutableConnectorChoice, want []models.RoutableConnector) bool {
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

func TestApplyScoresReordersDescending(t *testing.T) {
	list := candidates(models.ConnectorStripe, models.ConnectorAdyen, models.ConnectorCheckout)
	scores := []LabelScore{
		{Label: "stripe", Score: 91.2},
		{Label: "adyen", Score: 97.5},
		{Label: "checkout", Score: 80.0},
	}

	got := ApplyScores(list, scores)
	want := []models.RoutableConnector{models.ConnectorAdyen, models.ConnectorStripe, models.ConnectorCheckout}
	if !sameOrder(got, want) {
		t.Errorf("ApplyScores() = %v, want %v", order(got), want)
	}
}

func TestApplyScoresNeverInventsConnectors(t *testing.T) {
	list := candidates(models.ConnectorStripe)
	scores := []LabelScore{
		{Label: "stripe", Score: 50},
		{Label: "adyen", Score: 99},
	}

	got := ApplyScores(list, scores)
	if !sameOrder(got, []models.RoutableConnector{models.ConnectorStripe}) {
		t.Errorf("ApplyScores() = %v, scored but absent connectors must not appear", order(got))
	}
}

func TestApplyScoresUnscoredKeepOrderAtTail(t *testing.T) {
	list := candidates(models.ConnectorStripe, models.ConnectorAdyen, models.ConnectorCheckout, models.ConnectorPaypal)
	scores := []LabelScore{
		{Label: "adyen", Score: 90},
		{Label: "stripe", Score: 95},
	}

	got := ApplyScores(list, scores)
	want := []models.RoutableConnector{
		models.ConnectorStripe,
		models.ConnectorAdyen,
		models.ConnectorCheckout,
		models.ConnectorPaypal,
	}
	if !sameOrder(got, want) {
		t.Errorf("ApplyScores() = %v, want %v", order(got), want)
	}
}

func TestApplyScoresStableForEqualScores(t *testing.T) {
	list := candidates(models.ConnectorStripe, models.ConnectorAdyen, models.ConnectorCheckout)
	scores := []LabelScore{
		{Label: "stripe", Score: 90},
		{Label: "adyen", Score: 90},
		{Label: "checkout", Score: 90},
	}

	got := ApplyScores(list, scores)
	want := []models.RoutableConnector{models.ConnectorStripe, models.ConnectorAdyen, models.ConnectorCheckout}
	if !sameOrder(got, want) {
		t.Errorf("ApplyScores() with equal scores = %v, want incoming order %v", order(got), want)
	}
}

func TestApplyScoresEmptyScoresNoop(t *testing.T) {
	list := candidates(models.ConnectorStripe, models.ConnectorAdyen)
	got := ApplyScores(list, nil)
	if !sameOrder(got, []models.RoutableConnector{models.ConnectorStripe, models.ConnectorAdyen}) {
		t.Errorf("ApplyScores() with no scores = %v, want unchanged", order(got))
	}
}

func TestApplyEliminationDemotes(t *testing.T) {
	list := candidates(models.ConnectorAdyen, models.ConnectorStripe, models.ConnectorCheckout)
	result := &EliminationResult{
		Labels: []LabelElimination{
			{Label: "adyen", EliminatedEntity: true},
			{Label: "stripe"},
			{Label: "checkout"},
		},
	}

	got := ApplyElimination(list, result, PolicyDemote)
	want := []models.RoutableConnector{models.ConnectorStripe, models.ConnectorCheckout, models.ConnectorAdyen}
	if !sameOrder(got, want) {
		t.Errorf("ApplyElimination(demote) = %v, want %v", order(got), want)
	}
}

func TestApplyEliminationExcludes(t *testing.T) {
	list := candidates(models.ConnectorAdyen, models.ConnectorStripe, models.ConnectorCheckout)
	result := &EliminationResult{
		Labels: []LabelElimination{
			{Label: "adyen", EliminatedGlobal: true},
		},
	}

	got := ApplyElimination(list, result, PolicyExclude)
	want := []models.RoutableConnector{models.ConnectorStripe, models.ConnectorCheckout}
	if !sameOrder(got, want) {
		t.Errorf("ApplyElimination(exclude) = %v, want %v", order(got), want)
	}
}

func TestApplyEliminationAllEliminatedFallsBackToDemote(t *testing.T) {
	list := candidates(models.ConnectorAdyen, models.ConnectorStripe)
	result := &EliminationResult{
		Labels: []LabelElimination{
			{Label: "adyen", EliminatedEntity: true},
			{Label: "stripe", EliminatedGlobal: true},
		},
	}

	// Excluding everything would leave no attempt candidates.
	got := ApplyElimination(list, result, PolicyExclude)
	if len(got) != 2 {
		t.Fatalf("ApplyElimination() len = %d, want 2 (list must never empty)", len(got))
	}
}

func TestApplyEliminationEitherScopeEliminates(t *testing.T) {
	tests := []struct {
		name string
		l    LabelElimination
		want bool
	}{
		{"entity only", LabelElimination{EliminatedEntity: true}, true},
		{"global only", LabelElimination{EliminatedGlobal: true}, true},
		{"both", LabelElimination{EliminatedEntity: true, EliminatedGlobal: true}, true},
		{"neither", LabelElimination{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.Eliminated(); got != tt.want {
				t.Errorf("Eliminated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyEliminationNilResultNoop(t *testing.T) {
	list := candidates(models.ConnectorStripe, models.ConnectorAdyen)
	got := ApplyElimination(list, nil, PolicyDemote)
	if !sameOrder(got, []models.RoutableConnector{models.ConnectorStripe, models.ConnectorAdyen}) {
		t.Errorf("ApplyElimination(nil) = %v, want unchanged", order(got))
	}
}

func TestLabelsDeduplicates(t *testing.T) {
	accountA := "mca_a"
	accountB := "mca_b"
	list := []models.RoutableConnectorChoice{
		{Connector: models.ConnectorStripe, MerchantConnectorID: &accountA},
		{Connector: models.ConnectorStripe, MerchantConnectorID: &accountB},
		{Connector: models.ConnectorAdyen},
	}

	got := Labels(list)
	if len(got) != 2 || got[0] != "stripe" || got[1] != "adyen" {
		t.Errorf("Labels() = %v, want [stripe adyen]", got)
	}
}
