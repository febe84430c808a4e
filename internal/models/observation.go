package models

import "image"

// Observation is one per-region classification reported by the inference engine.
type Observation struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Region     image.Rectangle `json:"region"`
}
