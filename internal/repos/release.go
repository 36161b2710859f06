package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/types"
)

var ErrReleaseNotFound = errors.New("release not found")

type ReleaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, release *types.CodeRelease) (*types.CodeRelease, error)
	GetByID(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*types.CodeRelease, error)
	MarkPublished(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, at time.Time) error
	MarkRolledBack(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, at time.Time, reason string) error
}

type releaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReleaseRepo(db *gorm.DB, baseLog *logger.Logger) ReleaseRepo {
	return &releaseRepo{db: db, log: baseLog.With("repo", "ReleaseRepo")}
}

func (r *releaseRepo) Create(ctx context.Context, tx *gorm.DB, release *types.CodeRelease) (*types.CodeRelease, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(release).Error; err != nil {
		return nil, err
	}
	return release, nil
}

func (r *releaseRepo) GetByID(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*types.CodeRelease, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.CodeRelease
	err := transaction.WithContext(ctx).
		Where("id = ?", releaseID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReleaseNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *releaseRepo) MarkPublished(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.CodeRelease{}).
		Where("id = ?", releaseID).
		Updates(map[string]interface{}{
			"status":       types.ReleaseStatusPublished,
			"published_at": at,
			"updated_at":   at,
		}).Error
}

func (r *releaseRepo) MarkRolledBack(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, at time.Time, reason string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.CodeRelease{}).
		Where("id = ?", releaseID).
		Updates(map[string]interface{}{
			"status":          types.ReleaseStatusRolledBack,
			"rolled_back_at":  at,
			"rollback_reason": reason,
			"updated_at":      at,
		}).Error
}
