package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PatchStatusOpen           = "open"
	PatchStatusReadyForReview = "ready_for_review"
	PatchStatusPublished      = "published"
	PatchStatusRolledBack     = "rolled_back"
)

const (
	ChangeTypeManualEdit = "manual_edit"
	ChangeTypeGenerated  = "generated"
	ChangeTypeImport     = "import"
)

// CodePatch is one named, diff-bearing modification layered on top of a
// file baseline. Rows are never deleted; lifecycle is status-only.
type CodePatch struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID *uuid.UUID   `gorm:"type:uuid;index" json:"release_id,omitempty"`
	Release   *CodeRelease `gorm:"foreignKey:ReleaseID;references:ID" json:"release,omitempty"`

	StoreID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_patch_store_file" json:"store_id"`
	FilePath          string         `gorm:"column:file_path;not null;index:idx_patch_store_file" json:"file_path"`
	PatchName         string         `gorm:"column:patch_name;not null" json:"patch_name"`
	ChangeType        string         `gorm:"column:change_type;not null;default:'manual_edit'" json:"change_type"`
	UnifiedDiff       string         `gorm:"column:unified_diff;type:text;not null" json:"unified_diff"`
	StructuralDiff    datatypes.JSON `gorm:"column:structural_diff;type:jsonb" json:"structural_diff,omitempty"`
	ChangeSummary     string         `gorm:"column:change_summary" json:"change_summary"`
	ChangeDescription string         `gorm:"column:change_description;type:text" json:"change_description"`
	BaselineVersion   int            `gorm:"column:baseline_version;not null;default:1" json:"baseline_version"`
	Priority          int            `gorm:"column:priority;not null;default:0" json:"priority"`
	Status            string         `gorm:"column:status;not null;default:'open';index" json:"status"`
	CreatedBy         uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`
	SessionID         *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CodePatch) TableName() string { return "code_patch" }
