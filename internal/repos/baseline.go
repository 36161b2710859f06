package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/types"
)

// ErrBaselineNotFound is returned when no baseline row exists for the
// requested store/file.
var ErrBaselineNotFound = errors.New("baseline not found")

type BaselineRepo interface {
	Create(ctx context.Context, tx *gorm.DB, baseline *types.FileBaseline) (*types.FileBaseline, error)
	// GetCurrent returns the highest-version baseline for the file.
	GetCurrent(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string) (*types.FileBaseline, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, version int) (*types.FileBaseline, error)
}

type baselineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBaselineRepo(db *gorm.DB, baseLog *logger.Logger) BaselineRepo {
	return &baselineRepo{db: db, log: baseLog.With("repo", "BaselineRepo")}
}

func (r *baselineRepo) Create(ctx context.Context, tx *gorm.DB, baseline *types.FileBaseline) (*types.FileBaseline, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(baseline).Error; err != nil {
		return nil, err
	}
	return baseline, nil
}

func (r *baselineRepo) GetCurrent(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string) (*types.FileBaseline, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FileBaseline
	err := transaction.WithContext(ctx).
		Where("store_id = ? AND file_path = ?", storeID, filePath).
		Order("version DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: store=%s path=%s", ErrBaselineNotFound, storeID, filePath)
		}
		return nil, err
	}
	return &result, nil
}

func (r *baselineRepo) GetByVersion(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, filePath string, version int) (*types.FileBaseline, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.FileBaseline
	err := transaction.WithContext(ctx).
		Where("store_id = ? AND file_path = ? AND version = ?", storeID, filePath, version).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: store=%s path=%s version=%d", ErrBaselineNotFound, storeID, filePath, version)
		}
		return nil, err
	}
	return &result, nil
}
