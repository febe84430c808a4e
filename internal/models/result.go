package models

import "fmt"

// AggregatedResult is one distinct label and the confidence it was first seen with.
type AggregatedResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// String renders the result the way it is shown to the user, e.g. "cat: 87.50%".
func (r AggregatedResult) String() string {
	return fmt.Sprintf("%s: %.2f%%", r.Label, r.Confidence*100)
}

// ResultSet is a deduplicated list of results sorted by label ascending.
type ResultSet []AggregatedResult

// Labels returns the labels of the set in order.
func (rs ResultSet) Labels() []string {
	labels := make([]string, 0, len(rs))
	for _, r := range rs {
		labels = append(labels, r.Label)
	}
	return labels
}
