package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/cache"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// ErrInvalidTransition is returned for publish/rollback calls that do
// not fit the draft → published → rolled_back state machine.
var ErrInvalidTransition = errors.New("invalid release transition")

type CreateReleaseOptions struct {
	StoreID       uuid.UUID
	VersionName   string
	VersionNumber int
	ReleaseType   string
	Description   string
	ABTest        datatypes.JSON
	CreatedBy     uuid.UUID
}

// ReleaseService drives the publish/rollback state machine governing
// patch and release visibility. Rolled back is terminal: reintroducing
// changes requires a new release.
type ReleaseService interface {
	Create(ctx context.Context, opts CreateReleaseOptions) (*types.CodeRelease, error)
	Publish(ctx context.Context, releaseID uuid.UUID) error
	Rollback(ctx context.Context, releaseID uuid.UUID, reason string) error
}

type releaseService struct {
	db          *gorm.DB
	log         *logger.Logger
	releaseRepo repos.ReleaseRepo
	patchRepo   repos.PatchRepo
	cache       cache.Cache
}

func NewReleaseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	releaseRepo repos.ReleaseRepo,
	patchRepo repos.PatchRepo,
	resultCache cache.Cache,
) ReleaseService {
	return &releaseService{
		db:          db,
		log:         baseLog.With("service", "ReleaseService"),
		releaseRepo: releaseRepo,
		patchRepo:   patchRepo,
		cache:       resultCache,
	}
}

func (s *releaseService) Create(ctx context.Context, opts CreateReleaseOptions) (*types.CodeRelease, error) {
	releaseType := opts.ReleaseType
	if releaseType == "" {
		releaseType = types.ReleaseTypeStandard
	}
	versionNumber := opts.VersionNumber
	if versionNumber <= 0 {
		versionNumber = 1
	}
	release := &types.CodeRelease{
		ID:            uuid.New(),
		StoreID:       opts.StoreID,
		VersionName:   opts.VersionName,
		VersionNumber: versionNumber,
		ReleaseType:   releaseType,
		Description:   opts.Description,
		ABTest:        opts.ABTest,
		Status:        types.ReleaseStatusDraft,
		CreatedBy:     opts.CreatedBy,
	}
	if _, err := s.releaseRepo.Create(ctx, nil, release); err != nil {
		return nil, fmt.Errorf("create release: %w", err)
	}
	return release, nil
}

// Publish moves every open or ready_for_review patch under the release
// to published, stamps the release, and invalidates cached
// compositions so the new patches become visible.
func (s *releaseService) Publish(ctx context.Context, releaseID uuid.UUID) error {
	release, err := s.releaseRepo.GetByID(ctx, nil, releaseID)
	if err != nil {
		return err
	}
	if release.Status != types.ReleaseStatusDraft {
		return fmt.Errorf("%w: cannot publish release in status %q", ErrInvalidTransition, release.Status)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.patchRepo.UpdateStatusByRelease(ctx, tx, releaseID,
			[]string{types.PatchStatusOpen, types.PatchStatusReadyForReview},
			types.PatchStatusPublished)
		if err != nil {
			return fmt.Errorf("publish patches: %w", err)
		}
		if err := s.releaseRepo.MarkPublished(ctx, tx, releaseID, now); err != nil {
			return fmt.Errorf("mark release published: %w", err)
		}
		s.log.Info("release published",
			"release_id", releaseID,
			"store_id", release.StoreID,
			"patches_published", updated,
		)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.cache.Flush(ctx); err != nil {
		s.log.Warn("cache flush after publish failed", "release_id", releaseID, "error", err)
	}
	return nil
}

// Rollback is terminal for the release and all of its patches; they are
// permanently excluded from future selection.
func (s *releaseService) Rollback(ctx context.Context, releaseID uuid.UUID, reason string) error {
	release, err := s.releaseRepo.GetByID(ctx, nil, releaseID)
	if err != nil {
		return err
	}
	if release.Status == types.ReleaseStatusRolledBack {
		return fmt.Errorf("%w: release already rolled back", ErrInvalidTransition)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.patchRepo.UpdateStatusByRelease(ctx, tx, releaseID,
			[]string{types.PatchStatusOpen, types.PatchStatusReadyForReview, types.PatchStatusPublished},
			types.PatchStatusRolledBack)
		if err != nil {
			return fmt.Errorf("roll back patches: %w", err)
		}
		if err := s.releaseRepo.MarkRolledBack(ctx, tx, releaseID, now, reason); err != nil {
			return fmt.Errorf("mark release rolled back: %w", err)
		}
		s.log.Info("release rolled back",
			"release_id", releaseID,
			"store_id", release.StoreID,
			"reason", reason,
			"patches_rolled_back", updated,
		)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.cache.Flush(ctx); err != nil {
		s.log.Warn("cache flush after rollback failed", "release_id", releaseID, "error", err)
	}
	return nil
}
