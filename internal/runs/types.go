package runs

import "time"

// Status values for run entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// RunRecord is the shape persisted in the runs DynamoDB table.
type RunRecord struct {
	RunID          string    `dynamodbav:"run_id" json:"run_id"` // PK
	Status         string    `dynamodbav:"status" json:"status"`
	Trigger        string    `dynamodbav:"trigger,omitempty" json:"trigger,omitempty"` // "schedule" or "http"
	ItemsProcessed int       `dynamodbav:"items_processed" json:"items_processed"`
	Summary        string    `dynamodbav:"summary,omitempty" json:"summary,omitempty"` // JSON RunSummary
	CreatedAt      time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at" json:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at" json:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty" json:"note,omitempty"`
}
