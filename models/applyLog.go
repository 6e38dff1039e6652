package models

import "time"

// ApplyLogEntry is the append-only audit trail of the apply stage: one entry
// per processed ChangeRecord. Never updated or deleted.
type ApplyLogEntry struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	ImportId  string    `gorm:"index;size:64;not null" json:"import_id"`
	Minsan    string    `gorm:"size:20;not null" json:"minsan"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
