package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/types"
)

type PatchExclusionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, exclusion *types.PatchExclusion) (*types.PatchExclusion, error)
	GetExcludedPatchIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

type patchExclusionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatchExclusionRepo(db *gorm.DB, baseLog *logger.Logger) PatchExclusionRepo {
	return &patchExclusionRepo{db: db, log: baseLog.With("repo", "PatchExclusionRepo")}
}

func (r *patchExclusionRepo) Create(ctx context.Context, tx *gorm.DB, exclusion *types.PatchExclusion) (*types.PatchExclusion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(exclusion).Error; err != nil {
		return nil, err
	}
	return exclusion, nil
}

func (r *patchExclusionRepo) GetExcludedPatchIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.PatchExclusion{}).
		Where("user_id = ?", userID).
		Pluck("patch_id", &ids).Error; err != nil {
		return nil, err
	}

	excluded := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}
