package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"photolabels/internal/models"
)

// CycleRepository implements repository.CycleRepository for SQLite.
type CycleRepository struct {
	db *DB
}

// NewCycleRepository creates a new SQLite cycle repository.
func NewCycleRepository(db *DB) *CycleRepository {
	return &CycleRepository{db: db}
}

const insertCycle = `
	INSERT INTO cycles (session, cycle, outcome, labels, observations, dropped, duration_ms, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertBatch adds multiple records in a single transaction.
func (r *CycleRepository) InsertBatch(records []models.CycleRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertCycle)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(cycleArgs(&records[i])...); err != nil {
			return fmt.Errorf("failed to insert cycle: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecent returns the newest records first.
func (r *CycleRepository) GetRecent(limit int) ([]models.CycleRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, session, cycle, outcome, labels, observations, dropped, duration_ms, finished_at
		FROM cycles ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	return scanCycles(rows)
}

// GetBySession returns all records of one session in insertion order.
func (r *CycleRepository) GetBySession(session string) ([]models.CycleRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, session, cycle, outcome, labels, observations, dropped, duration_ms, finished_at
		FROM cycles WHERE session = ? ORDER BY id
	`, session)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	return scanCycles(rows)
}

// GetStats returns totals per outcome and the average cycle duration.
func (r *CycleRepository) GetStats() (*models.CycleStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.CycleStats{PerOutcome: make(map[models.CycleOutcome]int)}

	var avgMillis float64
	err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM cycles`).Scan(&stats.TotalCycles, &avgMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to count cycles: %w", err)
	}
	stats.AverageDuration = time.Duration(avgMillis * float64(time.Millisecond))

	rows, err := r.db.Conn().Query(`SELECT outcome, COUNT(*) FROM cycles GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		stats.PerOutcome[models.CycleOutcome(outcome)] = count
	}

	return stats, rows.Err()
}

// DeleteAll removes every record.
func (r *CycleRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM cycles`); err != nil {
		return fmt.Errorf("failed to delete cycles: %w", err)
	}
	return nil
}

func cycleArgs(rec *models.CycleRecord) []interface{} {
	return []interface{}{
		rec.Session,
		int64(rec.Cycle),
		string(rec.Outcome),
		rec.Labels,
		rec.Observations,
		rec.Dropped,
		rec.Duration.Milliseconds(),
		rec.FinishedAt.UTC(),
	}
}

func scanCycles(rows *sql.Rows) ([]models.CycleRecord, error) {
	var records []models.CycleRecord
	for rows.Next() {
		var rec models.CycleRecord
		var cycle, durationMillis int64
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.Session, &cycle, &outcome, &rec.Labels, &rec.Observations,
			&rec.Dropped, &durationMillis, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		rec.Cycle = uint64(cycle)
		rec.Outcome = models.CycleOutcome(outcome)
		rec.Duration = time.Duration(durationMillis) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
