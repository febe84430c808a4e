// Package cycle runs detect-and-aggregate cycles for one presentation context.
//
// A Controller owns a single event loop. Image selections, engine
// completions, cancellations and reads of the live report are all handled
// on that loop, so aggregation and the hand-off to the Presenter never
// interleave. Engine calls run on their own goroutines and report back
// tagged with the id of the cycle that started them; a completion whose id
// is not the current cycle is dropped.
package cycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/service/aggregate"
)

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("cycle controller closed")

// Engine produces observations for one image.
type Engine interface {
	Detect(ctx context.Context, image []byte) ([]models.Observation, error)
}

// Presenter displays accepted cycle reports. Present is called from the
// controller loop and should not block for long.
type Presenter interface {
	Present(report models.CycleReport)
}

// Journal receives a telemetry record for every finished, dropped or
// cancelled cycle.
type Journal interface {
	Record(record models.CycleRecord)
}

type selectRequest struct {
	image []byte
	reply chan uint64
}

type completion struct {
	cycle        uint64
	started      time.Time
	observations []models.Observation
	err          error
}

// Controller sequences detect-and-aggregate cycles. The zero value is not
// usable; create one with New.
type Controller struct {
	engine    Engine
	presenter Presenter
	journal   Journal
	logger    *logger.Logger
	session   string

	ctx  context.Context
	stop context.CancelFunc

	selections    chan selectRequest
	completions   chan completion
	cancellations chan struct{}
	lives         chan chan models.CycleReport
	done          chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once

	// Owned by the loop.
	current  uint64
	inflight context.CancelFunc
	live     models.CycleReport
}

// New starts a controller. The live report starts empty with cycle id 0.
func New(engine Engine, presenter Presenter, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		engine:        engine,
		presenter:     presenter,
		journal:       nopJournal{},
		logger:        logger.NewDiscard(),
		ctx:           ctx,
		stop:          stop,
		selections:    make(chan selectRequest),
		completions:   make(chan completion),
		cancellations: make(chan struct{}, 1),
		lives:         make(chan chan models.CycleReport),
		done:          make(chan struct{}),
		live:          models.CycleReport{Results: models.ResultSet{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.live.Session = c.session

	go c.run()
	return c
}

// Select starts a new cycle for image and returns its id. Any earlier cycle
// that has not completed is superseded. An empty image is a cancelled
// selection: nothing is started, the live report stays as it is and
// models.ErrSelectionCancelled is returned.
func (c *Controller) Select(ctx context.Context, image []byte) (uint64, error) {
	if len(image) == 0 {
		c.Cancel()
		return 0, models.ErrSelectionCancelled
	}

	req := selectRequest{image: image, reply: make(chan uint64, 1)}
	select {
	case c.selections <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, ErrClosed
	}
	return <-req.reply, nil
}

// Cancel records that the user dismissed the image picker. It never changes
// the live report or any in-flight cycle.
func (c *Controller) Cancel() {
	select {
	case c.cancellations <- struct{}{}:
	default:
		// A cancellation is already pending; they carry no data.
	}
}

// Live returns the report currently presented.
func (c *Controller) Live() models.CycleReport {
	reply := make(chan models.CycleReport, 1)
	select {
	case c.lives <- reply:
		return <-reply
	case <-c.done:
		return c.live
	}
}

// Close stops the loop, cancels any in-flight engine call and waits for
// engine goroutines to return.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.stop()
		<-c.done
		c.wg.Wait()
		c.logger.Debug("Cycle controller for session %s closed", c.session)
	})
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			if c.inflight != nil {
				c.inflight()
				c.inflight = nil
			}
			return

		case req := <-c.selections:
			req.reply <- c.start(req.image)

		case result := <-c.completions:
			c.complete(result)

		case <-c.cancellations:
			c.logger.Info("Session %s: image selection cancelled, keeping cycle %d", c.session, c.live.Cycle)
			c.journal.Record(models.CycleRecord{
				Session:    c.session,
				Cycle:      c.live.Cycle,
				Outcome:    models.OutcomeCancelled,
				FinishedAt: time.Now(),
			})

		case reply := <-c.lives:
			reply <- c.live
		}
	}
}

// start makes a new cycle current and invokes the engine for it exactly once.
func (c *Controller) start(image []byte) uint64 {
	if c.inflight != nil {
		c.logger.Debug("Session %s: cycle %d superseded before completion", c.session, c.current)
		c.inflight()
	}

	c.current++
	id := c.current
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		started := time.Now()
		observations, err := c.engine.Detect(ctx, image)

		select {
		case c.completions <- completion{cycle: id, started: started, observations: observations, err: err}:
		case <-c.ctx.Done():
		}
	}()

	c.logger.Debug("Session %s: cycle %d started (%d bytes)", c.session, id, len(image))
	return id
}

// complete accepts the result of the current cycle and drops any other.
func (c *Controller) complete(result completion) {
	duration := time.Since(result.started)
	record := models.CycleRecord{
		Session:      c.session,
		Cycle:        result.cycle,
		Observations: len(result.observations),
		Duration:     duration,
		FinishedAt:   time.Now(),
	}

	if result.cycle != c.current {
		c.logger.Info("Session %s: dropping result of superseded cycle %d (current %d)", c.session, result.cycle, c.current)
		record.Outcome = models.OutcomeSuperseded
		c.journal.Record(record)
		return
	}

	c.inflight()
	c.inflight = nil

	report := models.CycleReport{
		Cycle:       result.cycle,
		Session:     c.session,
		CompletedAt: record.FinishedAt,
	}

	if result.err != nil {
		report.Results = models.ResultSet{}
		report.Failed = true
		report.Failure = models.FailureOf(result.err)
		report.Error = result.err.Error()
		record.Observations = 0

		if report.Failure == models.FailureDecode {
			record.Outcome = models.OutcomeDecodeFailed
			c.logger.Warning("Session %s: cycle %d image could not be decoded: %v", c.session, result.cycle, result.err)
		} else {
			record.Outcome = models.OutcomeInferenceFailed
			c.logger.Error("Session %s: cycle %d inference failed: %v", c.session, result.cycle, result.err)
		}
	} else {
		results, stats := aggregate.AggregateWithStats(result.observations)
		report.Results = results
		record.Labels = len(results)
		record.Dropped = stats.Malformed

		if stats.Malformed > 0 {
			c.logger.Warning("Session %s: cycle %d skipped %d of %d observations without a label",
				c.session, result.cycle, stats.Malformed, stats.Observations)
		}
		if len(results) == 0 {
			record.Outcome = models.OutcomeEmpty
		} else {
			record.Outcome = models.OutcomePresented
		}
		c.logger.Info("Session %s: cycle %d presented %d label(s) from %d observation(s) in %v",
			c.session, result.cycle, len(results), stats.Observations, duration)
	}

	c.live = report
	c.presenter.Present(report)
	c.journal.Record(record)
}

type nopJournal struct{}

func (nopJournal) Record(models.CycleRecord) {}
