package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ReleaseStatusDraft      = "draft"
	ReleaseStatusPublished  = "published"
	ReleaseStatusRolledBack = "rolled_back"
)

const (
	ReleaseTypeStandard = "standard"
	ReleaseTypeABTest   = "ab_test"
	ReleaseTypeHotfix   = "hotfix"
)

// ABTestConfig is the JSON payload of code_release.ab_test_config. A
// null config matches every request variant.
type ABTestConfig struct {
	Variant string `json:"variant"`
}

// CodeRelease is a versioned, publishable bundle of patches.
type CodeRelease struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"store_id"`
	VersionName   string         `gorm:"column:version_name;not null" json:"version_name"`
	VersionNumber int            `gorm:"column:version_number;not null;default:1" json:"version_number"`
	ReleaseType   string         `gorm:"column:release_type;not null;default:'standard'" json:"release_type"`
	Description   string         `gorm:"column:description;type:text" json:"description"`
	ABTest        datatypes.JSON `gorm:"column:ab_test_config;type:jsonb" json:"ab_test_config,omitempty"`
	Status        string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	CreatedBy     uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`

	PublishedAt    *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`
	RolledBackAt   *time.Time `gorm:"column:rolled_back_at" json:"rolled_back_at,omitempty"`
	RollbackReason string     `gorm:"column:rollback_reason" json:"rollback_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CodeRelease) TableName() string { return "code_release" }

// ABVariant reports the release's configured variant. ok is false when
// no A/B config is set, meaning the release matches every variant.
func (r *CodeRelease) ABVariant() (string, bool) {
	if r == nil || len(r.ABTest) == 0 || string(r.ABTest) == "null" {
		return "", false
	}
	var cfg ABTestConfig
	if err := json.Unmarshal(r.ABTest, &cfg); err != nil {
		return "", false
	}
	if cfg.Variant == "" {
		return "", false
	}
	return cfg.Variant, true
}
