package types

import (
	"time"

	"github.com/google/uuid"
)

// FileBaseline is the immutable starting code for one version of a
// store's view-source file. New versions supersede but never delete
// prior rows.
type FileBaseline struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_baseline_file_version" json:"store_id"`
	FilePath    string    `gorm:"column:file_path;not null;uniqueIndex:uniq_baseline_file_version" json:"file_path"`
	Version     int       `gorm:"column:version;not null;default:1;uniqueIndex:uniq_baseline_file_version" json:"version"`
	Code        string    `gorm:"column:code;type:text;not null" json:"code"`
	ContentHash string    `gorm:"column:content_hash;not null" json:"content_hash"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (FileBaseline) TableName() string { return "file_baseline" }
