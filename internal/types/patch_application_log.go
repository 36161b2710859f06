package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ApplicationStatusSuccess = "success"
	ApplicationStatusFailed  = "failed"
)

// PatchApplicationLog is the audit row for one patch outcome within one
// composition run. It is written after the fact and never read back by
// composition itself.
type PatchApplicationLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"run_id"`
	PatchID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"patch_id"`
	StoreID    uuid.UUID  `gorm:"type:uuid;not null" json:"store_id"`
	SessionID  *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	FilePath   string     `gorm:"column:file_path;not null" json:"file_path"`
	Status     string     `gorm:"column:status;not null" json:"status"`
	Error      string     `gorm:"column:error" json:"error,omitempty"`
	DurationMS int64      `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
}

func (PatchApplicationLog) TableName() string { return "patch_application_log" }
