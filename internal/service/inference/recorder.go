package inference

import (
	"context"
	"sync"

	"photolabels/internal/models"
)

// Engine is anything that turns an image into observations.
type Engine interface {
	Detect(ctx context.Context, image []byte) ([]models.Observation, error)
}

// Recorder passes calls through to an Engine and keeps the observations of
// the last one, so callers can reuse them without a second engine call.
type Recorder struct {
	engine Engine
	mu     sync.Mutex
	last   []models.Observation
}

func NewRecorder(engine Engine) *Recorder {
	return &Recorder{engine: engine}
}

func (r *Recorder) Detect(ctx context.Context, image []byte) ([]models.Observation, error) {
	observations, err := r.engine.Detect(ctx, image)

	r.mu.Lock()
	r.last = observations
	r.mu.Unlock()
	return observations, err
}

// Last returns the observations of the most recent call.
func (r *Recorder) Last() []models.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
