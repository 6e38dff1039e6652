package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"gorm.io/gorm"
)

type ImportBatch struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	ImportId    string     `gorm:"uniqueIndex;size:64;not null" json:"import_id"`
	FileName    string     `gorm:"size:255" json:"file_name"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	RowCount    int        `json:"row_count"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetImportBatch(ctx context.Context, importId string) (*ImportBatch, error) {
	db := config.GetDB()
	var batch ImportBatch
	if err := db.WithContext(ctx).Where("import_id = ?", importId).Take(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// SetImportStatus moves the batch to the given status. Stage-level fatal errors
// never call this, so a failed stage leaves the previous status in place and the
// stage stays retryable.
func SetImportStatus(tx *gorm.DB, importId string, status string) error {
	return tx.Model(&ImportBatch{}).
		Where("import_id = ?", importId).
		Update("status", status).Error
}

// MarkImportStarted stamps started_at the first time a pipeline stage runs for
// the batch. Later stages and retries leave the original timestamp in place.
func MarkImportStarted(tx *gorm.DB, importId string, at time.Time) error {
	return tx.Model(&ImportBatch{}).
		Where("import_id = ? AND started_at IS NULL", importId).
		Update("started_at", at).Error
}

// MarkImportFinished stamps finished_at when an apply run completes. A re-apply
// of retained changes moves it forward to the latest run.
func MarkImportFinished(tx *gorm.DB, importId string, at time.Time) error {
	return tx.Model(&ImportBatch{}).
		Where("import_id = ?", importId).
		Update("finished_at", at).Error
}
