package types

import (
	"time"

	"github.com/google/uuid"
)

// PatchExclusion hides a single patch from a single user's composed
// output without touching the patch itself.
type PatchExclusion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_user_patch" json:"user_id"`
	PatchID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_user_patch" json:"patch_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PatchExclusion) TableName() string { return "patch_exclusion" }
