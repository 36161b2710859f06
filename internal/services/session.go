package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/diff"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// ErrNoChanges means the submitted code equals the current baseline
// after normalization; nothing is saved.
var ErrNoChanges = errors.New("no changes detected")

const (
	PatchActionCreated = "created"
	PatchActionUpdated = "updated"
)

// UpsertOptions describes one autosave or explicit save.
type UpsertOptions struct {
	SessionID     uuid.UUID
	StoreID       uuid.UUID
	CreatedBy     uuid.UUID
	ChangeType    string
	PatchName     string
	ChangeSummary string
	ReleaseID     *uuid.UUID
	Priority      int
}

type UpsertResult struct {
	PatchID uuid.UUID  `json:"patch_id"`
	Action  string     `json:"action"`
	Stats   diff.Stats `json:"diff_stats"`
}

type FinalizeOptions struct {
	StoreID   uuid.UUID
	CreatedBy uuid.UUID
	FilePath  string
}

// EditSessionService folds repeated autosave edits from one session
// into a single accumulating patch row instead of one row per save.
type EditSessionService interface {
	UpsertPatch(ctx context.Context, filePath, modifiedCode string, opts UpsertOptions) (*UpsertResult, error)
	// Finalize moves all of the session's open manual edits to
	// ready_for_review and stamps each description.
	Finalize(ctx context.Context, sessionID uuid.UUID, opts FinalizeOptions) (int, error)
}

type editSessionService struct {
	db           *gorm.DB
	log          *logger.Logger
	engine       *diff.Engine
	structural   *diff.StructuralEngine
	kinds        *diff.Registry
	baselineRepo repos.BaselineRepo
	patchRepo    repos.PatchRepo
}

func NewEditSessionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	engine *diff.Engine,
	structural *diff.StructuralEngine,
	kinds *diff.Registry,
	baselineRepo repos.BaselineRepo,
	patchRepo repos.PatchRepo,
) EditSessionService {
	return &editSessionService{
		db:           db,
		log:          baseLog.With("service", "EditSessionService"),
		engine:       engine,
		structural:   structural,
		kinds:        kinds,
		baselineRepo: baselineRepo,
		patchRepo:    patchRepo,
	}
}

func (s *editSessionService) UpsertPatch(ctx context.Context, filePath, modifiedCode string, opts UpsertOptions) (*UpsertResult, error) {
	baseline, err := s.baselineRepo.GetCurrent(ctx, nil, opts.StoreID, filePath)
	if err != nil {
		return nil, err
	}

	unified, err := s.engine.CreateDiff(ctx, baseline.Code, modifiedCode)
	if err != nil {
		return nil, fmt.Errorf("create diff: %w", err)
	}
	if unified == "" {
		return nil, ErrNoChanges
	}

	var structuralDiff datatypes.JSON
	if s.kinds.KindForPath(filePath) == diff.KindStructured {
		if changes := s.structural.CreateTextChanges(baseline.Code, modifiedCode); len(changes) > 0 {
			if raw, err := json.Marshal(changes); err == nil {
				structuralDiff = raw
			}
		}
	}

	stats := s.engine.GetDiffStats(unified)
	summary := opts.ChangeSummary
	if summary == "" {
		summary = fmt.Sprintf("+%d/-%d lines", stats.Additions, stats.Deletions)
	}

	if opts.ChangeType == types.ChangeTypeManualEdit {
		existing, err := s.patchRepo.FindOpenManualEdit(ctx, nil, opts.StoreID, filePath, opts.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("find open patch: %w", err)
		}
		if existing != nil {
			existing.UnifiedDiff = unified
			existing.StructuralDiff = structuralDiff
			existing.ChangeSummary = summary
			existing.BaselineVersion = baseline.Version
			existing.ChangeDescription += fmt.Sprintf("\n[autosaved %s]", time.Now().Format(time.RFC3339))
			if opts.SessionID != uuid.Nil {
				sessionID := opts.SessionID
				existing.SessionID = &sessionID
			}
			if err := s.patchRepo.Save(ctx, nil, existing); err != nil {
				return nil, fmt.Errorf("update patch: %w", err)
			}
			return &UpsertResult{PatchID: existing.ID, Action: PatchActionUpdated, Stats: stats}, nil
		}
	}

	name := opts.PatchName
	if name == "" {
		name = fmt.Sprintf("Manual edit of %s", filePath)
	}
	patch := &types.CodePatch{
		ID:                uuid.New(),
		ReleaseID:         opts.ReleaseID,
		StoreID:           opts.StoreID,
		FilePath:          filePath,
		PatchName:         name,
		ChangeType:        opts.ChangeType,
		UnifiedDiff:       unified,
		StructuralDiff:    structuralDiff,
		ChangeSummary:     summary,
		ChangeDescription: fmt.Sprintf("[created %s]", time.Now().Format(time.RFC3339)),
		BaselineVersion:   baseline.Version,
		Priority:          opts.Priority,
		Status:            types.PatchStatusOpen,
		CreatedBy:         opts.CreatedBy,
	}
	if opts.SessionID != uuid.Nil {
		sessionID := opts.SessionID
		patch.SessionID = &sessionID
	}
	if patch.ChangeType == "" {
		patch.ChangeType = types.ChangeTypeManualEdit
	}

	if _, err := s.patchRepo.Create(ctx, nil, patch); err != nil {
		return nil, fmt.Errorf("create patch: %w", err)
	}
	return &UpsertResult{PatchID: patch.ID, Action: PatchActionCreated, Stats: stats}, nil
}

func (s *editSessionService) Finalize(ctx context.Context, sessionID uuid.UUID, opts FinalizeOptions) (int, error) {
	patches, err := s.patchRepo.ListOpenManualEdits(ctx, nil, opts.StoreID, opts.CreatedBy, sessionID, opts.FilePath)
	if err != nil {
		return 0, fmt.Errorf("list session patches: %w", err)
	}

	finalized := 0
	stamp := time.Now().Format(time.RFC3339)
	for _, patch := range patches {
		patch.Status = types.PatchStatusReadyForReview
		patch.ChangeDescription += fmt.Sprintf("\n[finalized %s]", stamp)
		if err := s.patchRepo.Save(ctx, nil, patch); err != nil {
			return finalized, fmt.Errorf("finalize patch %s: %w", patch.ID, err)
		}
		finalized++
	}
	s.log.Info("edit session finalized",
		"session_id", sessionID,
		"store_id", opts.StoreID,
		"finalized", finalized,
	)
	return finalized, nil
}
