package routing

import (
	"fmt"
	"math/rand"

	"github.com/malwarebo/switchboard/models"
)

// Evaluate runs a program against input facts and returns the ranked
// connector list. Rules are tried in declaration order; the first rule whose
// statements fully match wins, otherwise the default selection is used.
// Evaluation is deterministic for priority outputs; volume-split outputs pick
// one weighted branch per call.
func Evaluate(program *models.Program, input *models.BackendInput) ([]models.RoutableConnectorChoice, error) {
	for i := range program.Rules {
		if ruleMatches(&program.Rules[i], input) {
			return FlattenOutput(program.Rules[i].Output)
		}
	}
	return FlattenOutput(program.DefaultSelection)
}

// FlattenAlgorithm expands any static algorithm variant into its ranked
// connector list for this evaluation.
func FlattenAlgorithm(algorithm *models.StaticRoutingAlgorithm, input *models.BackendInput) ([]models.RoutableConnectorChoice, error) {
	switch algorithm.Kind {
	case models.AlgorithmSingle:
		if algorithm.Single == nil {
			return nil, fmt.Errorf("single algorithm has no connector")
		}
		return []models.RoutableConnectorChoice{*algorithm.Single}, nil
	case models.AlgorithmPriority:
		return append([]models.RoutableConnectorChoice(nil), algorithm.Priority...), nil
	case models.AlgorithmVolumeSplit:
		return flattenVolumeSplit(algorithm.VolumeSplit)
	case models.AlgorithmAdvanced:
		if algorithm.Program == nil {
			return nil, fmt.Errorf("advanced algorithm has no program")
		}
		return Evaluate(algorithm.Program, input)
	}
	return nil, fmt.Errorf("unknown algorithm kind %q", algorithm.Kind)
}

// A rule matches when any of its top-level statements matches.
func ruleMatches(rule *models.Rule, input *models.BackendInput) bool {
	for i := range rule.Statements {
		if statementMatches(&rule.Statements[i], input) {
			return true
		}
	}
	return false
}

// A statement matches when every comparison and every nested statement holds.
func statementMatches(stmt *models.IfStatement, input *models.BackendInput) bool {
	for i := range stmt.Condition {
		if !comparisonMatches(&stmt.Condition[i], input) {
			return false
		}
	}
	for i := range stmt.Nested {
		if !statementMatches(&stmt.Nested[i], input) {
			return false
		}
	}
	return true
}

// An absent fact never matches; absence means "does not satisfy", not "rule
// inapplicable".
func comparisonMatches(cmp *models.Comparison, input *models.BackendInput) bool {
	if cmp.Value.Kind == models.ValueMetadata {
		if cmp.Value.MetadataVariant == nil {
			return false
		}
		actual, ok := input.MetadataFact(cmp.Value.MetadataVariant.Key)
		if !ok {
			return false
		}
		return compareStrings(actual, cmp.Value.MetadataVariant.Value, cmp.Comparison)
	}

	fact, ok := input.Fact(cmp.Lhs)
	if !ok {
		return false
	}

	switch v := fact.(type) {
	case int64:
		return numberMatches(v, cmp)
	case string:
		return stringMatches(v, cmp)
	}
	return false
}

func numberMatches(fact int64, cmp *models.Comparison) bool {
	switch cmp.Value.Kind {
	case models.ValueNumber:
		return compareNumbers(fact, cmp.Value.Number, cmp.Comparison)
	case models.ValueNumberArray:
		contains := false
		for _, n := range cmp.Value.NumberArray {
			if n == fact {
				contains = true
				break
			}
		}
		if cmp.Comparison == models.CompareNotEqual {
			return !contains
		}
		return contains
	case models.ValueNumberComparisons:
		for _, rc := range cmp.Value.NumberComparisons {
			if !compareNumbers(fact, rc.Number, rc.ComparisonType) {
				return false
			}
		}
		return len(cmp.Value.NumberComparisons) > 0
	}
	return false
}

func stringMatches(fact string, cmp *models.Comparison) bool {
	switch cmp.Value.Kind {
	case models.ValueEnum:
		return compareStrings(fact, cmp.Value.EnumVariant, cmp.Comparison)
	case models.ValueStr:
		return compareStrings(fact, cmp.Value.StrValue, cmp.Comparison)
	case models.ValueEnumArray:
		contains := false
		for _, s := range cmp.Value.EnumVariantArray {
			if s == fact {
				contains = true
				break
			}
		}
		if cmp.Comparison == models.CompareNotEqual {
			return !contains
		}
		return contains
	}
	return false
}

func compareNumbers(lhs, rhs int64, op models.ComparisonType) bool {
	switch op {
	case models.CompareEqual:
		return lhs == rhs
	case models.CompareNotEqual:
		return lhs != rhs
	case models.CompareLessThan:
		return lhs < rhs
	case models.CompareLessThanEqual:
		return lhs <= rhs
	case models.CompareGreaterThan:
		return lhs > rhs
	case models.CompareGreaterThanEqual:
		return lhs >= rhs
	}
	return false
}

// Enum and string comparisons are case-sensitive exact matches; ordering
// operators do not apply.
func compareStrings(lhs, rhs string, op models.ComparisonType) bool {
	switch op {
	case models.CompareEqual:
		return lhs == rhs
	case models.CompareNotEqual:
		return lhs != rhs
	}
	return false
}

// FlattenOutput expands an output leaf into an ordered connector list.
// Volume splits select one weighted branch, then flatten it.
func FlattenOutput(out models.Output) ([]models.RoutableConnectorChoice, error) {
	switch out.Kind {
	case models.OutputSingle:
		if out.Single == nil {
			return nil, fmt.Errorf("single output has no connector")
		}
		return []models.RoutableConnectorChoice{*out.Single}, nil
	case models.OutputPriority:
		return append([]models.RoutableConnectorChoice(nil), out.Priority...), nil
	case models.OutputVolumeSplit:
		return flattenVolumeSplit(out.VolumeSplit)
	case models.OutputVolumeSplitPriority:
		return flattenVolumeSplitPriority(out.VolumeSplitPriority)
	}
	return nil, fmt.Errorf("unknown output kind %q", out.Kind)
}

func flattenVolumeSplit(splits []models.VolumeSplitConnector) ([]models.RoutableConnectorChoice, error) {
	if len(splits) == 0 {
		return nil, fmt.Errorf("volume split has no branches")
	}
	total := 0
	for _, s := range splits {
		total += s.Split
	}
	if total <= 0 {
		return nil, fmt.Errorf("volume split weights sum to %d", total)
	}
	pick := rand.Intn(total)
	for _, s := range splits {
		pick -= s.Split
		if pick < 0 {
			return []models.RoutableConnectorChoice{s.Output}, nil
		}
	}
	return []models.RoutableConnectorChoice{splits[len(splits)-1].Output}, nil
}

func flattenVolumeSplitPriority(splits []models.VolumeSplitPriority) ([]models.RoutableConnectorChoice, error) {
	if len(splits) == 0 {
		return nil, fmt.Errorf("volume split has no branches")
	}
	total := 0
	for _, s := range splits {
		total += s.Split
	}
	if total <= 0 {
		return nil, fmt.Errorf("volume split weights sum to %d", total)
	}
	pick := rand.Intn(total)
	for _, s := range splits {
		pick -= s.Split
		if pick < 0 {
			return append([]models.RoutableConnectorChoice(nil), s.Output...), nil
		}
	}
	return append([]models.RoutableConnectorChoice(nil), splits[len(splits)-1].Output...), nil
}
