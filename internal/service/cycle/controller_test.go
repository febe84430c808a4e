package cycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photolabels/internal/models"
)

// scriptedEngine returns, for each image, whatever the test sends on that
// image's gate. It ignores context cancellation so that late completions of
// superseded cycles can be simulated.
type scriptedEngine struct {
	mu     sync.Mutex
	gates  map[string]chan engineResult
	calls  atomic.Int32
	closed chan struct{}
}

type engineResult struct {
	observations []models.Observation
	err          error
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{gates: make(map[string]chan engineResult), closed: make(chan struct{})}
}

func (e *scriptedEngine) gate(image string) chan engineResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.gates[image]
	if !ok {
		g = make(chan engineResult, 1)
		e.gates[image] = g
	}
	return g
}

func (e *scriptedEngine) Detect(ctx context.Context, image []byte) ([]models.Observation, error) {
	e.calls.Add(1)
	select {
	case r := <-e.gate(string(image)):
		return r.observations, r.err
	case <-e.closed:
		return nil, models.ErrInference
	}
}

type recordingPresenter struct {
	mu      sync.Mutex
	reports []models.CycleReport
}

func (p *recordingPresenter) Present(report models.CycleReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
}

func (p *recordingPresenter) all() []models.CycleReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.CycleReport(nil), p.reports...)
}

type recordingJournal struct {
	mu      sync.Mutex
	records []models.CycleRecord
}

func (j *recordingJournal) Record(record models.CycleRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
}

func (j *recordingJournal) has(outcome models.CycleOutcome, cycle uint64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.records {
		if r.Outcome == outcome && r.Cycle == cycle {
			return true
		}
	}
	return false
}

func newController(t *testing.T) (*Controller, *scriptedEngine, *recordingPresenter, *recordingJournal) {
	t.Helper()
	engine := newScriptedEngine()
	presenter := &recordingPresenter{}
	journal := &recordingJournal{}
	c := New(engine, presenter, WithJournal(journal), WithSession("test-session"))
	t.Cleanup(func() {
		close(engine.closed)
		c.Close()
	})
	return c, engine, presenter, journal
}

func observations(pairs ...interface{}) []models.Observation {
	var out []models.Observation
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Observation{Label: pairs[i].(string), Confidence: pairs[i+1].(float64)})
	}
	return out
}

func waitForReports(t *testing.T, p *recordingPresenter, n int) []models.CycleReport {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.all()) >= n }, time.Second, time.Millisecond)
	return p.all()
}

func TestController_PresentsAggregatedResults(t *testing.T) {
	c, engine, presenter, journal := newController(t)

	id, err := c.Select(context.Background(), []byte("photo"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	engine.gate("photo") <- engineResult{observations: observations("dog", 0.7, "cat", 0.4, "cat", 0.9, "", 0.8)}

	reports := waitForReports(t, presenter, 1)
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(1), reports[0].Cycle)
	assert.Equal(t, "test-session", reports[0].Session)
	assert.False(t, reports[0].Failed)
	assert.Equal(t, models.ResultSet{{Label: "cat", Confidence: 0.4}, {Label: "dog", Confidence: 0.7}}, reports[0].Results)
	assert.Equal(t, reports[0], c.Live())

	require.Eventually(t, func() bool { return journal.has(models.OutcomePresented, 1) }, time.Second, time.Millisecond)
	journal.mu.Lock()
	assert.Equal(t, 1, journal.records[0].Dropped)
	assert.Equal(t, 4, journal.records[0].Observations)
	assert.Equal(t, 2, journal.records[0].Labels)
	journal.mu.Unlock()
}

func TestController_LiveStartsEmpty(t *testing.T) {
	c, _, _, _ := newController(t)

	live := c.Live()
	assert.Equal(t, uint64(0), live.Cycle)
	assert.NotNil(t, live.Results)
	assert.Empty(t, live.Results)
	assert.False(t, live.Failed)
}

func TestController_SupersededResultIsDropped(t *testing.T) {
	c, engine, presenter, journal := newController(t)

	first, err := c.Select(context.Background(), []byte("A"))
	require.NoError(t, err)
	second, err := c.Select(context.Background(), []byte("B"))
	require.NoError(t, err)
	require.Greater(t, second, first)

	// B completes first, A arrives late.
	engine.gate("B") <- engineResult{observations: observations("dog", 0.6)}
	waitForReports(t, presenter, 1)
	engine.gate("A") <- engineResult{observations: observations("cat", 0.9)}

	require.Eventually(t, func() bool { return journal.has(models.OutcomeSuperseded, first) }, time.Second, time.Millisecond)

	reports := presenter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, second, reports[0].Cycle)
	assert.Equal(t, models.ResultSet{{Label: "dog", Confidence: 0.6}}, reports[0].Results)
	assert.Equal(t, second, c.Live().Cycle)
}

func TestController_SupersededResultDroppedEvenIfItArrivesFirst(t *testing.T) {
	c, engine, presenter, journal := newController(t)

	first, _ := c.Select(context.Background(), []byte("A"))
	second, _ := c.Select(context.Background(), []byte("B"))

	engine.gate("A") <- engineResult{observations: observations("cat", 0.9)}
	require.Eventually(t, func() bool { return journal.has(models.OutcomeSuperseded, first) }, time.Second, time.Millisecond)
	assert.Empty(t, presenter.all())
	assert.Equal(t, uint64(0), c.Live().Cycle)

	engine.gate("B") <- engineResult{observations: observations("dog", 0.6)}
	reports := waitForReports(t, presenter, 1)
	assert.Equal(t, second, reports[0].Cycle)
}

func TestController_SupersessionCancelsEngineContext(t *testing.T) {
	cancelled := make(chan struct{})
	engine := engineFunc(func(ctx context.Context, image []byte) ([]models.Observation, error) {
		if string(image) == "A" {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return observations("dog", 0.5), nil
	})
	presenter := &recordingPresenter{}
	c := New(engine, presenter)
	defer c.Close()

	_, err := c.Select(context.Background(), []byte("A"))
	require.NoError(t, err)
	_, err = c.Select(context.Background(), []byte("B"))
	require.NoError(t, err)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded engine call was not cancelled")
	}

	reports := waitForReports(t, presenter, 1)
	assert.Equal(t, uint64(2), reports[0].Cycle)
	assert.False(t, reports[0].Failed)
}

func TestController_CancellationKeepsPriorResults(t *testing.T) {
	c, engine, presenter, journal := newController(t)

	_, err := c.Select(context.Background(), []byte("photo"))
	require.NoError(t, err)
	engine.gate("photo") <- engineResult{observations: observations("cat", 0.4)}
	waitForReports(t, presenter, 1)
	before := c.Live()

	_, err = c.Select(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrSelectionCancelled)
	c.Cancel()

	require.Eventually(t, func() bool { return journal.has(models.OutcomeCancelled, 1) }, time.Second, time.Millisecond)
	assert.Len(t, presenter.all(), 1)
	assert.Equal(t, before, c.Live())
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestController_EngineFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		failure models.FailureKind
		outcome models.CycleOutcome
	}{
		{"inference", fmt.Errorf("model not loaded: %w", models.ErrInference), models.FailureInference, models.OutcomeInferenceFailed},
		{"decode", fmt.Errorf("bad jpeg: %w", models.ErrDecode), models.FailureDecode, models.OutcomeDecodeFailed},
		{"unclassified", fmt.Errorf("segfault-ish"), models.FailureInference, models.OutcomeInferenceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, engine, presenter, journal := newController(t)

			_, err := c.Select(context.Background(), []byte("photo"))
			require.NoError(t, err)
			engine.gate("photo") <- engineResult{
				observations: observations("cat", 0.4),
				err:          tt.err,
			}

			reports := waitForReports(t, presenter, 1)
			report := reports[0]
			assert.True(t, report.Failed)
			assert.Equal(t, tt.failure, report.Failure)
			assert.NotNil(t, report.Results)
			assert.Empty(t, report.Results, "a failed cycle must not present partial results")
			assert.Contains(t, report.Error, tt.err.Error())
			require.Eventually(t, func() bool { return journal.has(tt.outcome, 1) }, time.Second, time.Millisecond)
		})
	}
}

func TestController_EmptyImageIsNotAFailure(t *testing.T) {
	c, engine, presenter, journal := newController(t)

	_, err := c.Select(context.Background(), []byte("empty-room"))
	require.NoError(t, err)
	engine.gate("empty-room") <- engineResult{}

	reports := waitForReports(t, presenter, 1)
	assert.False(t, reports[0].Failed)
	assert.Empty(t, reports[0].Results)
	require.Eventually(t, func() bool { return journal.has(models.OutcomeEmpty, 1) }, time.Second, time.Millisecond)
}

func TestController_OneEngineCallPerSelection(t *testing.T) {
	var calls atomic.Int32
	engine := engineFunc(func(ctx context.Context, image []byte) ([]models.Observation, error) {
		calls.Add(1)
		return nil, models.ErrInference
	})
	presenter := &recordingPresenter{}
	c := New(engine, presenter)
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Select(context.Background(), []byte(fmt.Sprintf("img-%d", i)))
		require.NoError(t, err)
		waitForReports(t, presenter, i+1)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestController_ConcurrentSelectionsPresentOnlyCurrentCycle(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, image []byte) ([]models.Observation, error) {
		time.Sleep(time.Millisecond)
		return observations(string(image), 0.5), nil
	})
	presenter := &recordingPresenter{}
	journal := &recordingJournal{}
	c := New(engine, presenter, WithJournal(journal))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Select(context.Background(), []byte(fmt.Sprintf("img-%02d", i)))
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		journal.mu.Lock()
		defer journal.mu.Unlock()
		return len(journal.records) == 20
	}, 2*time.Second, time.Millisecond)

	// Presented cycle ids only ever increase and the last one is the newest cycle.
	reports := presenter.all()
	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i].Cycle, reports[i-1].Cycle)
	}
	assert.Equal(t, uint64(20), reports[len(reports)-1].Cycle)
	assert.Equal(t, uint64(20), c.Live().Cycle)
	for _, r := range reports {
		assert.Len(t, r.Results, 1)
	}
}

func TestController_Close(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, image []byte) ([]models.Observation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	presenter := &recordingPresenter{}
	c := New(engine, presenter)

	_, err := c.Select(context.Background(), []byte("pending"))
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, err = c.Select(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, presenter.all())
	assert.Equal(t, uint64(0), c.Live().Cycle)
}

func TestController_SelectHonoursContext(t *testing.T) {
	c, _, _, _ := newController(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The loop may still accept the request; either outcome is valid but it
	// must not block.
	done := make(chan struct{})
	go func() {
		c.Select(ctx, []byte("x"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Select blocked with a cancelled context")
	}
}

type engineFunc func(ctx context.Context, image []byte) ([]models.Observation, error)

func (f engineFunc) Detect(ctx context.Context, image []byte) ([]models.Observation, error) {
	return f(ctx, image)
}
