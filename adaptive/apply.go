package adaptive

import (
	"sort"

	"github.com/malwarebo/switchboard/models"
)

// EliminationPolicy decides what happens to an eliminated candidate: demoted
// to the tail of the list, or excluded outright.
type EliminationPolicy string

const (
	PolicyDemote  EliminationPolicy = "demote"
	PolicyExclude EliminationPolicy = "exclude"
)

// ApplyScores reorders candidates by descending score, stably, so equal
// scores keep the incoming order. Candidates the service did not score keep
// their relative order at the tail. Scores never introduce connectors absent
// from the candidate list.
func ApplyScores(candidates []models.RoutableConnectorChoice, scores []LabelScore) []models.RoutableConnectorChoice {
	if len(scores) == 0 {
		return candidates
	}
	byLabel := make(map[string]float64, len(scores))
	for _, s := range scores {
		byLabel[s.Label] = s.Score
	}

	scored := make([]models.RoutableConnectorChoice, 0, len(candidates))
	unscored := make([]models.RoutableConnectorChoice, 0)
	for _, c := range candidates {
		if _, ok := byLabel[string(c.Connector)]; ok {
			scored = append(scored, c)
		} else {
			unscored = append(unscored, c)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return byLabel[string(scored[i].Connector)] > byLabel[string(scored[j].Connector)]
	})
	return append(scored, unscored...)
}

// ApplyElimination moves eliminated candidates to the tail (demote) or drops
// them (exclude), preserving the relative order of the survivors. Excluding
// every candidate falls back to demotion so the list never empties.
func ApplyElimination(candidates []models.RoutableConnectorChoice, result *EliminationResult, policy EliminationPolicy) []models.RoutableConnectorChoice {
	if result == nil || len(result.Labels) == 0 {
		return candidates
	}
	eliminated := make(map[string]struct{}, len(result.Labels))
	for _, l := range result.Labels {
		if l.Eliminated() {
			eliminated[l.Label] = struct{}{}
		}
	}
	if len(eliminated) == 0 {
		return candidates
	}

	kept := make([]models.RoutableConnectorChoice, 0, len(candidates))
	demoted := make([]models.RoutableConnectorChoice, 0)
	for _, c := range candidates {
		if _, ok := eliminated[string(c.Connector)]; ok {
			demoted = append(demoted, c)
		} else {
			kept = append(kept, c)
		}
	}
	if policy == PolicyExclude && len(kept) > 0 {
		return kept
	}
	return append(kept, demoted...)
}

// Labels projects a candidate list into the label set the scoring services
// are keyed by.
func Labels(candidates []models.RoutableConnectorChoice) []string {
	labels := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		label := string(c.Connector)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}
