package routing

import "github.com/malwarebo/switchboard/models"

// ResultSource names which evaluation result a profile prefers.
type ResultSource string

const (
	SourceDecisionService ResultSource = "decision_service"
	SourceLocal           ResultSource = "local"
)

// SelectEvaluationResult picks between the locally computed list and the
// decision service's list. An empty decision-service result always yields the
// local list; a result emptied by an upstream failure is indistinguishable
// from a legitimately empty one here, so callers log the failure before
// defaulting it to empty.
func SelectEvaluationResult(local, remote []models.RoutableConnectorChoice, prefer ResultSource) []models.RoutableConnectorChoice {
	if prefer == SourceDecisionService && len(remote) > 0 {
		return remote
	}
	return local
}

// TransformOutputForRouter builds the final attempt order: evaluated entries
// first in their own order, then any raw entries not already present. Every
// candidate from either list appears exactly once.
func TransformOutputForRouter(raw, evaluated []models.RoutableConnectorChoice) []models.RoutableConnectorChoice {
	seen := make(map[string]struct{}, len(raw)+len(evaluated))
	out := make([]models.RoutableConnectorChoice, 0, len(raw)+len(evaluated))

	for _, choice := range evaluated {
		key := choiceKey(choice)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, choice)
	}
	for _, choice := range raw {
		key := choiceKey(choice)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, choice)
	}
	return out
}

func choiceKey(c models.RoutableConnectorChoice) string {
	if c.MerchantConnectorID != nil {
		return string(c.Connector) + ":" + *c.MerchantConnectorID
	}
	return string(c.Connector)
}
