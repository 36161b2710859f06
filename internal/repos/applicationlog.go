package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/types"
)

type ApplicationLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.PatchApplicationLog) error
	GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.PatchApplicationLog, error)
}

type applicationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplicationLogRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationLogRepo {
	return &applicationLogRepo{db: db, log: baseLog.With("repo", "ApplicationLogRepo")}
}

func (r *applicationLogRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.PatchApplicationLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(entries) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&entries).Error
}

func (r *applicationLogRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.PatchApplicationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PatchApplicationLog
	if err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
