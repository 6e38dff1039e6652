package shopsync

import (
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
)

type CreateImportRequest struct {
	// Source is a local path or a gs://bucket/object xlsx extract.
	Source      string `json:"source" validate:"required"`
	TriggeredBy string `json:"triggeredBy" validate:"omitempty,oneof=manual retry system"`
	// Async queues the normalize stage right after ingestion.
	Async bool `json:"async"`
}

type StageRequest struct {
	Async bool `json:"async"`
}

type ApplyRequest struct {
	// ChangeIds restricts the apply to a subset of pending changes.
	// Empty means apply everything pending for the import.
	ChangeIds []uint `json:"changeIds"`
	DryRun    bool   `json:"dryRun"`
	Async     bool   `json:"async"`
}

type ImportResponse struct {
	ImportId      string  `json:"importId"`
	FileName      string  `json:"fileName"`
	Status        string  `json:"status"`
	RowCount      int     `json:"rowCount"`
	TriggeredBy   string  `json:"triggeredBy"`
	PendingCount  int64   `json:"pendingCount"`
	AppliedCount  int64   `json:"appliedCount"`
	FailedCount   int64   `json:"failedCount"`
	CreatedAt     string  `json:"createdAt"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
}

type ChangeResponse struct {
	ID      uint                        `json:"id"`
	Minsan  string                      `json:"minsan"`
	Missing bool                        `json:"missing"`
	Fields  map[string]models.FieldDelta `json:"fields"`
}

type ApplyLogResponse struct {
	ID        uint   `json:"id"`
	Minsan    string `json:"minsan"`
	Status    string `json:"status"`
	Details   string `json:"details"`
	CreatedAt string `json:"createdAt"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
