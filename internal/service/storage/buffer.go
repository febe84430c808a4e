package storage

import (
	"context"
	"sync"
	"time"

	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/repository"
)

const (
	// JournalBufferLimit bounds how many records are held between flushes;
	// records beyond it are counted and dropped.
	JournalBufferLimit = 1024
	// JournalFlushInterval is how often buffered records are written.
	JournalFlushInterval = 5 * time.Second
)

// JournalBuffer collects cycle records in memory and periodically writes
// them to the repository, so cycle controllers never wait on the database.
type JournalBuffer struct {
	records  []models.CycleRecord
	dropped  int
	limit    int
	interval time.Duration
	mu       sync.Mutex
	logger   *logger.Logger
	repo     repository.CycleRepository
}

// NewJournalBuffer creates a JournalBuffer writing to repo.
func NewJournalBuffer(repo repository.CycleRepository, logger *logger.Logger) *JournalBuffer {
	return &JournalBuffer{
		records:  make([]models.CycleRecord, 0),
		limit:    JournalBufferLimit,
		interval: JournalFlushInterval,
		logger:   logger,
		repo:     repo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *JournalBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Record appends a record to the buffer.
func (s *JournalBuffer) Record(record models.CycleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.limit {
		s.dropped++
		return
	}
	s.records = append(s.records, record)
}

// Flush writes buffered records in one batch. The batch is taken out of the
// buffer first so Record never waits on the database. On failure the
// records are put back in front of any recorded meanwhile.
func (s *JournalBuffer) Flush() {
	s.mu.Lock()
	if s.dropped > 0 {
		s.logger.Warning("Journal buffer full, %d record(s) dropped", s.dropped)
		s.dropped = 0
	}
	batch := s.records
	s.records = make([]models.CycleRecord, 0, len(batch))
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := s.repo.InsertBatch(batch); err != nil {
		s.logger.Error("Error saving %d cycle record(s): %v", len(batch), err)
		s.restore(batch)
		return
	}

	s.logger.Debug("Flushed %d cycle record(s)", len(batch))
}

// restore puts an unsaved batch back, keeping the buffer within its limit.
func (s *JournalBuffer) restore(batch []models.CycleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(batch, s.records...)
	if len(records) > s.limit {
		s.dropped += len(records) - s.limit
		records = records[:s.limit]
	}
	s.records = records
}

// Pending returns the number of records waiting for a flush.
func (s *JournalBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
