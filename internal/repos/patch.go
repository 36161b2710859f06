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

type PatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, patch *types.CodePatch) (*types.CodePatch, error)
	GetByID(ctx context.Context, tx *gorm.DB, patchID uuid.UUID) (*types.CodePatch, error)
	// ListForFile returns candidate patches for one store/file with the
	// owning release preloaded, ordered by priority then created_at so
	// composition order is stable across calls.
	ListForFile(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, statuses []string) ([]*types.CodePatch, error)
	// FindOpenManualEdit returns the accumulating autosave patch for
	// (store, file, creator), or nil when none exists.
	FindOpenManualEdit(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, createdBy uuid.UUID) (*types.CodePatch, error)
	ListOpenManualEdits(ctx context.Context, tx *gorm.DB, storeID, createdBy uuid.UUID, sessionID uuid.UUID, filePath string) ([]*types.CodePatch, error)
	Save(ctx context.Context, tx *gorm.DB, patch *types.CodePatch) error
	ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, statuses []string) ([]*types.CodePatch, error)
	UpdateStatusByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, fromStatuses []string, toStatus string) (int64, error)
}

type patchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatchRepo(db *gorm.DB, baseLog *logger.Logger) PatchRepo {
	return &patchRepo{db: db, log: baseLog.With("repo", "PatchRepo")}
}

func (r *patchRepo) Create(ctx context.Context, tx *gorm.DB, patch *types.CodePatch) (*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(patch).Error; err != nil {
		return nil, err
	}
	return patch, nil
}

func (r *patchRepo) GetByID(ctx context.Context, tx *gorm.DB, patchID uuid.UUID) (*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.CodePatch
	if err := transaction.WithContext(ctx).
		Preload("Release").
		Where("id = ?", patchID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *patchRepo) ListForFile(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, statuses []string) ([]*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CodePatch
	if len(statuses) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("Release").
		Where("store_id = ? AND file_path = ? AND status IN ?", storeID, filePath, statuses).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *patchRepo) FindOpenManualEdit(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, createdBy uuid.UUID) (*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.CodePatch
	err := transaction.WithContext(ctx).
		Where("store_id = ? AND file_path = ? AND created_by = ? AND change_type = ? AND status = ?",
			storeID, filePath, createdBy, types.ChangeTypeManualEdit, types.PatchStatusOpen).
		Order("created_at ASC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *patchRepo) ListOpenManualEdits(ctx context.Context, tx *gorm.DB, storeID, createdBy uuid.UUID, sessionID uuid.UUID, filePath string) ([]*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Where("store_id = ? AND created_by = ? AND change_type = ? AND status = ?",
			storeID, createdBy, types.ChangeTypeManualEdit, types.PatchStatusOpen)
	if sessionID != uuid.Nil {
		query = query.Where("session_id = ?", sessionID)
	}
	if filePath != "" {
		query = query.Where("file_path = ?", filePath)
	}

	var results []*types.CodePatch
	if err := query.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *patchRepo) Save(ctx context.Context, tx *gorm.DB, patch *types.CodePatch) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	patch.UpdatedAt = time.Now()
	return transaction.WithContext(ctx).Save(patch).Error
}

func (r *patchRepo) ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, statuses []string) ([]*types.CodePatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Where("release_id = ?", releaseID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var results []*types.CodePatch
	if err := query.Order("priority ASC, created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *patchRepo) UpdateStatusByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, fromStatuses []string, toStatus string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.CodePatch{}).
		Where("release_id = ? AND status IN ?", releaseID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     toStatus,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
