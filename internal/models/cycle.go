package models

import "time"

// FailureKind tells a decode failure apart from an engine failure.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureDecode    FailureKind = "decode"
	FailureInference FailureKind = "inference"
)

// CycleReport is what a presenter receives at the end of an accepted cycle.
// Failed with empty Results means the engine failed; not Failed with empty
// Results means the image had no objects.
type CycleReport struct {
	Cycle       uint64      `json:"cycle"`
	Session     string      `json:"session,omitempty"`
	Results     ResultSet   `json:"results"`
	Failed      bool        `json:"failed"`
	Failure     FailureKind `json:"failure,omitempty"`
	Error       string      `json:"error,omitempty"`
	CompletedAt time.Time   `json:"completedAt"`
}

// CycleOutcome is how a cycle ended, as recorded in the journal.
type CycleOutcome string

const (
	OutcomePresented       CycleOutcome = "presented"
	OutcomeEmpty           CycleOutcome = "empty"
	OutcomeDecodeFailed    CycleOutcome = "decode_failed"
	OutcomeInferenceFailed CycleOutcome = "inference_failed"
	OutcomeSuperseded      CycleOutcome = "superseded"
	OutcomeCancelled       CycleOutcome = "cancelled"
)

// CycleRecord is a telemetry row. It carries counts only; result labels are
// never persisted.
type CycleRecord struct {
	ID           int64         `json:"id"`
	Session      string        `json:"session"`
	Cycle        uint64        `json:"cycle"`
	Outcome      CycleOutcome  `json:"outcome"`
	Labels       int           `json:"labels"`
	Observations int           `json:"observations"`
	Dropped      int           `json:"dropped"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finishedAt"`
}

// CycleStats summarizes the journal.
type CycleStats struct {
	TotalCycles     int                  `json:"total_cycles"`
	PerOutcome      map[CycleOutcome]int `json:"per_outcome"`
	AverageDuration time.Duration        `json:"average_duration"`
}
