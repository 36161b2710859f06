package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/cache"
	"github.com/threadmill/storefront-backend/internal/diff"
	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/types"
)

// testStack wires the full service graph over an in-memory sqlite
// database and an in-memory cache.
type testStack struct {
	db          *gorm.DB
	engine      *diff.Engine
	structural  *diff.StructuralEngine
	kinds       *diff.Registry
	cache       *cache.MemoryCache
	baselines   repos.BaselineRepo
	patches     repos.PatchRepo
	releases    repos.ReleaseRepo
	exclusions  repos.PatchExclusionRepo
	appLogs     repos.ApplicationLogRepo
	selector    SelectorService
	composer    ComposerService
	editSession EditSessionService
	release     ReleaseService
	baseline    BaselineService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.FileBaseline{},
		&types.CodeRelease{},
		&types.CodePatch{},
		&types.PatchExclusion{},
		&types.PatchApplicationLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()

	engine := diff.NewEngine(diff.NewMatchPatchProvider(), 2*time.Second, log)
	structural := diff.NewStructuralEngine(log)
	kinds := diff.NewRegistry()
	memCache := cache.NewMemoryCache()

	baselineRepo := repos.NewBaselineRepo(db, log)
	patchRepo := repos.NewPatchRepo(db, log)
	releaseRepo := repos.NewReleaseRepo(db, log)
	exclusionRepo := repos.NewPatchExclusionRepo(db, log)
	appLogRepo := repos.NewApplicationLogRepo(db, log)

	selector := NewSelectorService(db, log, patchRepo, exclusionRepo)
	composer := NewComposerService(db, log, engine, structural, kinds, selector,
		baselineRepo, appLogRepo, memCache, time.Minute)
	editSession := NewEditSessionService(db, log, engine, structural, kinds, baselineRepo, patchRepo)
	release := NewReleaseService(db, log, releaseRepo, patchRepo, memCache)
	baseline := NewBaselineService(db, log, baselineRepo)

	return &testStack{
		db:          db,
		engine:      engine,
		structural:  structural,
		kinds:       kinds,
		cache:       memCache,
		baselines:   baselineRepo,
		patches:     patchRepo,
		releases:    releaseRepo,
		exclusions:  exclusionRepo,
		appLogs:     appLogRepo,
		selector:    selector,
		composer:    composer,
		editSession: editSession,
		release:     release,
		baseline:    baseline,
	}
}

func (s *testStack) seedBaseline(t *testing.T, storeID uuid.UUID, filePath, code string) *types.FileBaseline {
	t.Helper()
	b, err := s.baseline.CreateBaseline(context.Background(), storeID, filePath, code)
	if err != nil {
		t.Fatalf("seed baseline: %v", err)
	}
	return b
}

func (s *testStack) mustDiff(t *testing.T, original, modified string) string {
	t.Helper()
	d, err := s.engine.CreateDiff(context.Background(), original, modified)
	if err != nil {
		t.Fatalf("create diff: %v", err)
	}
	if d == "" {
		t.Fatal("expected non-empty diff")
	}
	return d
}

func (s *testStack) seedPatch(t *testing.T, patch *types.CodePatch) *types.CodePatch {
	t.Helper()
	if patch.ID == uuid.Nil {
		patch.ID = uuid.New()
	}
	if patch.PatchName == "" {
		patch.PatchName = "test patch"
	}
	if patch.ChangeType == "" {
		patch.ChangeType = types.ChangeTypeManualEdit
	}
	if patch.Status == "" {
		patch.Status = types.PatchStatusPublished
	}
	if patch.CreatedBy == uuid.Nil {
		patch.CreatedBy = uuid.New()
	}
	if _, err := s.patches.Create(context.Background(), nil, patch); err != nil {
		t.Fatalf("seed patch: %v", err)
	}
	return patch
}

func (s *testStack) seedRelease(t *testing.T, release *types.CodeRelease) *types.CodeRelease {
	t.Helper()
	if release.ID == uuid.Nil {
		release.ID = uuid.New()
	}
	if release.VersionName == "" {
		release.VersionName = "v1"
	}
	if release.ReleaseType == "" {
		release.ReleaseType = types.ReleaseTypeStandard
	}
	if release.Status == "" {
		release.Status = types.ReleaseStatusDraft
	}
	if release.CreatedBy == uuid.Nil {
		release.CreatedBy = uuid.New()
	}
	if _, err := s.releases.Create(context.Background(), nil, release); err != nil {
		t.Fatalf("seed release: %v", err)
	}
	return release
}
