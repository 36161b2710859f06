package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/diff"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// BaselineService seeds baseline rows. In production the platform's
// import pipeline owns these; this surface exists for operators and
// tests. Baselines are immutable: a new save becomes the next version.
type BaselineService interface {
	CreateBaseline(ctx context.Context, storeID uuid.UUID, filePath, code string) (*types.FileBaseline, error)
	GetCurrent(ctx context.Context, storeID uuid.UUID, filePath string) (*types.FileBaseline, error)
}

type baselineService struct {
	db           *gorm.DB
	log          *logger.Logger
	baselineRepo repos.BaselineRepo
}

func NewBaselineService(db *gorm.DB, baseLog *logger.Logger, baselineRepo repos.BaselineRepo) BaselineService {
	return &baselineService{
		db:           db,
		log:          baseLog.With("service", "BaselineService"),
		baselineRepo: baselineRepo,
	}
}

func (s *baselineService) CreateBaseline(ctx context.Context, storeID uuid.UUID, filePath, code string) (*types.FileBaseline, error) {
	version := 1
	current, err := s.baselineRepo.GetCurrent(ctx, nil, storeID, filePath)
	if err != nil && !errors.Is(err, repos.ErrBaselineNotFound) {
		return nil, fmt.Errorf("load current baseline: %w", err)
	}
	if current != nil {
		version = current.Version + 1
	}

	normalized := diff.NormalizeLineEndings(code)
	baseline := &types.FileBaseline{
		ID:          uuid.New(),
		StoreID:     storeID,
		FilePath:    filePath,
		Version:     version,
		Code:        normalized,
		ContentHash: contentHash(normalized),
	}
	if _, err := s.baselineRepo.Create(ctx, nil, baseline); err != nil {
		return nil, fmt.Errorf("create baseline: %w", err)
	}
	s.log.Info("baseline created",
		"store_id", storeID,
		"file_path", filePath,
		"version", version,
	)
	return baseline, nil
}

func (s *baselineService) GetCurrent(ctx context.Context, storeID uuid.UUID, filePath string) (*types.FileBaseline, error) {
	return s.baselineRepo.GetCurrent(ctx, nil, storeID, filePath)
}
