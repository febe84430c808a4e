// Package aggregate reduces raw engine observations to a presentable ResultSet.
package aggregate

import (
	"sort"

	"photolabels/internal/models"
)

// Stats counts what aggregation did with its input.
type Stats struct {
	Observations int
	Malformed    int // observations without a label
	Duplicates   int // observations whose label was already recorded
}

// Aggregate deduplicates observations by label and sorts the result by label.
//
// The first observation seen for a label decides its confidence; later
// observations with the same label are discarded without being compared.
// Observations with an empty label are skipped. An empty or fully malformed
// input yields an empty, non-nil ResultSet.
func Aggregate(observations []models.Observation) models.ResultSet {
	rs, _ := AggregateWithStats(observations)
	return rs
}

// AggregateWithStats is Aggregate plus counters for diagnostics.
func AggregateWithStats(observations []models.Observation) (models.ResultSet, Stats) {
	stats := Stats{Observations: len(observations)}
	seen := make(map[string]struct{}, len(observations))
	results := make(models.ResultSet, 0, len(observations))

	for _, obs := range observations {
		if obs.Label == "" {
			stats.Malformed++
			continue
		}
		if _, ok := seen[obs.Label]; ok {
			stats.Duplicates++
			continue
		}
		seen[obs.Label] = struct{}{}
		results = append(results, models.AggregatedResult{
			Label:      obs.Label,
			Confidence: obs.Confidence,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Label < results[j].Label
	})

	return results, stats
}
