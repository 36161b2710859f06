package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// DefaultMaxPatches caps composition chain length when the caller does
// not bound it.
const DefaultMaxPatches = 50

// SelectContext is the request context a patch set is selected under.
type SelectContext struct {
	StoreID        uuid.UUID
	UserID         *uuid.UUID
	ReleaseVersion string
	ABVariant      string
	PreviewMode    bool
	MaxPatches     int
}

type SelectorService interface {
	// Select returns the candidate patches for a file in composition
	// order: priority ascending, then created_at ascending. The order is
	// deterministic so repeated compositions are reproducible.
	Select(ctx context.Context, filePath string, sel SelectContext) ([]*types.CodePatch, error)
}

type selectorService struct {
	db            *gorm.DB
	log           *logger.Logger
	patchRepo     repos.PatchRepo
	exclusionRepo repos.PatchExclusionRepo
}

func NewSelectorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	patchRepo repos.PatchRepo,
	exclusionRepo repos.PatchExclusionRepo,
) SelectorService {
	return &selectorService{
		db:            db,
		log:           baseLog.With("service", "SelectorService"),
		patchRepo:     patchRepo,
		exclusionRepo: exclusionRepo,
	}
}

func (s *selectorService) Select(ctx context.Context, filePath string, sel SelectContext) ([]*types.CodePatch, error) {
	statuses := []string{types.PatchStatusPublished}
	if sel.PreviewMode {
		statuses = []string{types.PatchStatusOpen, types.PatchStatusPublished}
	}

	candidates, err := s.patchRepo.ListForFile(ctx, nil, sel.StoreID, filePath, statuses)
	if err != nil {
		return nil, err
	}

	var excluded map[uuid.UUID]struct{}
	if sel.UserID != nil {
		excluded, err = s.exclusionRepo.GetExcludedPatchIDs(ctx, nil, *sel.UserID)
		if err != nil {
			return nil, err
		}
	}

	maxPatches := sel.MaxPatches
	if maxPatches <= 0 {
		maxPatches = DefaultMaxPatches
	}

	selected := make([]*types.CodePatch, 0, len(candidates))
	for _, patch := range candidates {
		if !releaseAdmits(patch.Release, sel) {
			continue
		}
		if _, skip := excluded[patch.ID]; skip {
			continue
		}
		selected = append(selected, patch)
		if len(selected) >= maxPatches {
			break
		}
	}
	return selected, nil
}

// releaseAdmits applies the release-level filters: rolled-back releases
// never contribute patches, a requested release version must match the
// owning release's name, and an A/B variant must match the release's
// config unless that config is null.
func releaseAdmits(release *types.CodeRelease, sel SelectContext) bool {
	if release != nil && release.Status == types.ReleaseStatusRolledBack {
		return false
	}
	if sel.ReleaseVersion != "" {
		if release == nil || release.VersionName != sel.ReleaseVersion {
			return false
		}
	}
	if sel.ABVariant != "" && release != nil {
		if variant, configured := release.ABVariant(); configured && variant != sel.ABVariant {
			return false
		}
	}
	return true
}
