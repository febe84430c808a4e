package repository

import "photolabels/internal/models"

// CycleRepository stores cycle telemetry records.
type CycleRepository interface {
	// Create operations
	InsertBatch(records []models.CycleRecord) error

	// Read operations
	GetRecent(limit int) ([]models.CycleRecord, error)
	GetBySession(session string) ([]models.CycleRecord, error)
	GetStats() (*models.CycleStats, error)

	// Delete operations
	DeleteAll() error
}
