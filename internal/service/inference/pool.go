// Package inference runs detection requests on a fixed set of detector instances.
package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"photolabels/internal/logger"
	"photolabels/internal/models"
)

var (
	// ErrQueueFull is returned when every worker is busy and the queue is full.
	ErrQueueFull = errors.Wrap(models.ErrInference, "processing queue full")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.Wrap(models.ErrInference, "inference pool stopped")
)

// Detector runs one forward pass. Implementations need not be safe for
// concurrent use; each worker owns exactly one Detector.
type Detector interface {
	DetectObjects(imageBytes []byte) ([]models.Observation, error)
}

type task struct {
	ctx   context.Context
	image []byte
	reply chan result
}

type result struct {
	observations []models.Observation
	err          error
}

// Pool dispatches Detect calls to one worker goroutine per detector.
type Pool struct {
	detectors []Detector
	queue     chan task
	logger    *logger.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool starts one worker per detector. queueSize bounds the number of
// requests waiting for a free worker.
func NewPool(detectors []Detector, queueSize int, logger *logger.Logger) *Pool {
	if queueSize < 0 {
		queueSize = 0
	}
	pool := &Pool{
		detectors: detectors,
		queue:     make(chan task, queueSize),
		logger:    logger,
	}

	for i := range detectors {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("🎬 Inference pool started with %d worker(s), queue size %d", len(detectors), queueSize)
	return pool
}

// Detect runs image through the next free detector. It returns early with
// the context error when ctx is done; the detector call itself, if already
// started, still runs to completion and its result is discarded.
func (p *Pool) Detect(ctx context.Context, image []byte) ([]models.Observation, error) {
	t := task{ctx: ctx, image: image, reply: make(chan result, 1)}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrStopped
	}
	select {
	case p.queue <- t:
	default:
		p.mu.RUnlock()
		p.logger.Warning("⚠️  Processing queue full - rejecting inference request")
		return nil, ErrQueueFull
	}
	p.mu.RUnlock()

	select {
	case r := <-t.reply:
		return r.observations, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker processes tasks with its own detector.
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	p.logger.Info("🔧 Inference worker %d started", workerID)
	detector := p.detectors[workerID]

	for t := range p.queue {
		if t.ctx.Err() != nil {
			p.logger.Debug("Worker %d skipping cancelled request", workerID)
			continue
		}
		observations, err := detector.DetectObjects(t.image)
		t.reply <- result{observations: observations, err: err}
	}

	p.logger.Info("🔧 Inference worker %d stopped", workerID)
}

// Stop rejects new requests, lets queued ones drain and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("🛑 All inference workers stopped")
}
