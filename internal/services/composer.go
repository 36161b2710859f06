package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/cache"
	"github.com/threadmill/storefront-backend/internal/diff"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// ComposeLogEntry is the per-patch outcome of one composition run.
type ComposeLogEntry struct {
	PatchID   uuid.UUID     `json:"patch_id"`
	PatchName string        `json:"patch_name"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ComposeResult is the outcome of folding an ordered patch list over a
// baseline. Composition is a pure function of its inputs: neither the
// baseline nor any patch row is mutated.
type ComposeResult struct {
	PatchedCode  string            `json:"patched_code"`
	AppliedCount int               `json:"applied_count"`
	TotalPatches int               `json:"total_patches"`
	Log          []ComposeLogEntry `json:"log"`
	ContentHash  string            `json:"content_hash"`
}

// ApplyOptions mirrors the selector context plus the session used for
// audit logging.
type ApplyOptions struct {
	StoreID        uuid.UUID  `json:"store_id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
	ReleaseVersion string     `json:"release_version,omitempty"`
	ABVariant      string     `json:"ab_variant,omitempty"`
	PreviewMode    bool       `json:"preview_mode"`
	MaxPatches     int        `json:"max_patches,omitempty"`
}

// ApplyResult is the exposed composition response.
type ApplyResult struct {
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	HasPatches     bool              `json:"has_patches"`
	BaselineCode   string            `json:"baseline_code"`
	PatchedCode    string            `json:"patched_code"`
	AppliedPatches []uuid.UUID       `json:"applied_patches"`
	TotalPatches   int               `json:"total_patches"`
	PatchDetails   []ComposeLogEntry `json:"patch_details"`
	ContentHash    string            `json:"content_hash,omitempty"`
	CacheKey       string            `json:"cache_key"`
}

type ComposerService interface {
	// Compose folds patches over baselineCode in order, isolating every
	// per-patch failure: a bad patch is logged and skipped, later patches
	// apply against the last good intermediate.
	Compose(ctx context.Context, baselineCode string, patches []*types.CodePatch, filePath string) ComposeResult
	// ApplyPatches is the exposed operation: baseline fetch, selection,
	// composition, caching and audit logging in one call.
	ApplyPatches(ctx context.Context, filePath string, opts ApplyOptions) (*ApplyResult, error)
	// ClearCache drops cached compositions for one file, or all of them
	// when filePath is empty.
	ClearCache(ctx context.Context, filePath string) error
}

type composerService struct {
	db           *gorm.DB
	log          *logger.Logger
	engine       *diff.Engine
	structural   *diff.StructuralEngine
	kinds        *diff.Registry
	selector     SelectorService
	baselineRepo repos.BaselineRepo
	appLogRepo   repos.ApplicationLogRepo
	cache        cache.Cache
	cacheTTL     time.Duration
	group        singleflight.Group
}

func NewComposerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	engine *diff.Engine,
	structural *diff.StructuralEngine,
	kinds *diff.Registry,
	selector SelectorService,
	baselineRepo repos.BaselineRepo,
	appLogRepo repos.ApplicationLogRepo,
	resultCache cache.Cache,
	cacheTTL time.Duration,
) ComposerService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &composerService{
		db:           db,
		log:          baseLog.With("service", "ComposerService"),
		engine:       engine,
		structural:   structural,
		kinds:        kinds,
		selector:     selector,
		baselineRepo: baselineRepo,
		appLogRepo:   appLogRepo,
		cache:        resultCache,
		cacheTTL:     cacheTTL,
	}
}

func (s *composerService) Compose(ctx context.Context, baselineCode string, patches []*types.CodePatch, filePath string) ComposeResult {
	structured := s.kinds.KindForPath(filePath) == diff.KindStructured
	currentCode := diff.NormalizeLineEndings(baselineCode)

	result := ComposeResult{TotalPatches: len(patches)}
	for _, patch := range patches {
		started := time.Now()
		candidate, err := s.applyOne(ctx, currentCode, patch, structured)
		if err == nil {
			err = s.validate(candidate, structured)
		}
		entry := ComposeLogEntry{
			PatchID:   patch.ID,
			PatchName: patch.PatchName,
			Duration:  time.Since(started),
		}
		if err != nil {
			entry.Status = types.ApplicationStatusFailed
			entry.Error = err.Error()
			s.log.Warn("patch skipped during composition",
				"patch_id", patch.ID,
				"file_path", filePath,
				"error", err,
			)
		} else {
			entry.Status = types.ApplicationStatusSuccess
			currentCode = candidate
			result.AppliedCount++
		}
		result.Log = append(result.Log, entry)
	}

	result.PatchedCode = currentCode
	result.ContentHash = contentHash(currentCode)
	return result
}

func (s *composerService) applyOne(ctx context.Context, currentCode string, patch *types.CodePatch, structured bool) (string, error) {
	if structured && len(patch.StructuralDiff) > 0 {
		var changes []diff.TextChange
		if err := json.Unmarshal(patch.StructuralDiff, &changes); err == nil && len(changes) > 0 {
			return s.structural.ApplyTextChanges(currentCode, changes), nil
		}
		// Malformed structural payload falls through to the line diff.
	}
	return s.engine.ApplyDiff(ctx, currentCode, patch.UnifiedDiff)
}

func (s *composerService) validate(candidate string, structured bool) error {
	if strings.TrimSpace(candidate) == "" {
		return errors.New("patched code is empty")
	}
	if structured && !s.structural.CanParse(candidate) {
		return errors.New("patched code no longer parses")
	}
	return nil
}

func (s *composerService) ApplyPatches(ctx context.Context, filePath string, opts ApplyOptions) (*ApplyResult, error) {
	key := compositionCacheKey(filePath, opts)

	if raw, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		var cached ApplyResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	} else if err != nil {
		s.log.Warn("cache read failed", "cache_key", key, "error", err)
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.applyPatchesUncached(ctx, filePath, opts, key)
	})
	if err != nil {
		return nil, err
	}
	return value.(*ApplyResult), nil
}

func (s *composerService) applyPatchesUncached(ctx context.Context, filePath string, opts ApplyOptions, key string) (*ApplyResult, error) {
	baseline, err := s.baselineRepo.GetCurrent(ctx, nil, opts.StoreID, filePath)
	if err != nil {
		if errors.Is(err, repos.ErrBaselineNotFound) {
			return &ApplyResult{
				Success:  false,
				Error:    fmt.Sprintf("no baseline for %s", filePath),
				CacheKey: key,
			}, nil
		}
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	patches, err := s.selector.Select(ctx, filePath, SelectContext{
		StoreID:        opts.StoreID,
		UserID:         opts.UserID,
		ReleaseVersion: opts.ReleaseVersion,
		ABVariant:      opts.ABVariant,
		PreviewMode:    opts.PreviewMode,
		MaxPatches:     opts.MaxPatches,
	})
	if err != nil {
		return nil, fmt.Errorf("select patches: %w", err)
	}

	result := &ApplyResult{
		Success:      true,
		HasPatches:   len(patches) > 0,
		BaselineCode: baseline.Code,
		PatchedCode:  baseline.Code,
		CacheKey:     key,
	}
	if len(patches) > 0 {
		composed := s.Compose(ctx, baseline.Code, patches, filePath)
		result.PatchedCode = composed.PatchedCode
		result.TotalPatches = composed.TotalPatches
		result.PatchDetails = composed.Log
		result.ContentHash = composed.ContentHash
		for _, entry := range composed.Log {
			if entry.Status == types.ApplicationStatusSuccess {
				result.AppliedPatches = append(result.AppliedPatches, entry.PatchID)
			}
		}
		s.persistRunLog(ctx, baseline, filePath, opts.SessionID, composed)
	} else {
		result.ContentHash = contentHash(baseline.Code)
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.Warn("cache write failed", "cache_key", key, "error", err)
		}
	}
	return result, nil
}

// persistRunLog writes the audit rows for one composition run. The rows
// are never read back by composition, so a write failure only warns.
func (s *composerService) persistRunLog(ctx context.Context, baseline *types.FileBaseline, filePath string, sessionID *uuid.UUID, composed ComposeResult) {
	runID := uuid.New()
	entries := make([]*types.PatchApplicationLog, 0, len(composed.Log))
	for _, entry := range composed.Log {
		entries = append(entries, &types.PatchApplicationLog{
			ID:         uuid.New(),
			RunID:      runID,
			PatchID:    entry.PatchID,
			StoreID:    baseline.StoreID,
			SessionID:  sessionID,
			FilePath:   filePath,
			Status:     entry.Status,
			Error:      entry.Error,
			DurationMS: entry.Duration.Milliseconds(),
		})
	}
	if err := s.appLogRepo.Create(ctx, nil, entries); err != nil {
		s.log.Warn("failed to persist application log", "run_id", runID, "error", err)
	}
}

func (s *composerService) ClearCache(ctx context.Context, filePath string) error {
	if filePath == "" {
		return s.cache.Flush(ctx)
	}
	return s.cache.DeletePrefix(ctx, "composition:"+filePath+"|")
}

func compositionCacheKey(filePath string, opts ApplyOptions) string {
	userID := ""
	if opts.UserID != nil {
		userID = opts.UserID.String()
	}
	return fmt.Sprintf("composition:%s|%s|%s|%s|%s|%t",
		filePath, opts.StoreID, userID, opts.ReleaseVersion, opts.ABVariant, opts.PreviewMode)
}

func contentHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
