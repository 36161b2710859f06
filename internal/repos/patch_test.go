package repos

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/types"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
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

func TestFindOpenManualEditNilWhenAbsent(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewPatchRepo(db, logger.NewNop())

	patch, err := repo.FindOpenManualEdit(context.Background(), nil, uuid.New(), "assets/a.js", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch != nil {
		t.Fatalf("expected nil patch, got %+v", patch)
	}
}

func TestListForFileOrderingAndPreload(t *testing.T) {
	db := newRepoTestDB(t)
	ctx := context.Background()
	patchRepo := NewPatchRepo(db, logger.NewNop())
	releaseRepo := NewReleaseRepo(db, logger.NewNop())

	storeID := uuid.New()
	filePath := "templates/index.liquid"
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	release, err := releaseRepo.Create(ctx, nil, &types.CodeRelease{
		ID: uuid.New(), StoreID: storeID, VersionName: "v1",
		ReleaseType: types.ReleaseTypeStandard, Status: types.ReleaseStatusPublished,
		CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("create release: %v", err)
	}

	mk := func(priority int, createdAt time.Time, releaseID *uuid.UUID) *types.CodePatch {
		p := &types.CodePatch{
			ID: uuid.New(), StoreID: storeID, FilePath: filePath,
			PatchName: "p", ChangeType: types.ChangeTypeManualEdit,
			UnifiedDiff: "x", Priority: priority,
			Status: types.PatchStatusPublished, CreatedBy: uuid.New(),
			CreatedAt: createdAt, ReleaseID: releaseID,
		}
		if _, err := patchRepo.Create(ctx, nil, p); err != nil {
			t.Fatalf("create patch: %v", err)
		}
		return p
	}

	third := mk(5, base, nil)
	second := mk(1, base.Add(time.Hour), &release.ID)
	first := mk(1, base, nil)

	got, err := patchRepo.ListForFile(ctx, nil, storeID, filePath, []string{types.PatchStatusPublished})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 patches, got %d", len(got))
	}
	want := []uuid.UUID{first.ID, second.ID, third.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if got[1].Release == nil || got[1].Release.VersionName != "v1" {
		t.Fatal("owning release should be preloaded")
	}

	// Empty status list selects nothing rather than everything.
	none, err := patchRepo.ListForFile(ctx, nil, storeID, filePath, nil)
	if err != nil {
		t.Fatalf("list with no statuses: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestUpdateStatusByRelease(t *testing.T) {
	db := newRepoTestDB(t)
	ctx := context.Background()
	patchRepo := NewPatchRepo(db, logger.NewNop())

	releaseID := uuid.New()
	statuses := []string{types.PatchStatusOpen, types.PatchStatusReadyForReview, types.PatchStatusRolledBack}
	for _, status := range statuses {
		if _, err := patchRepo.Create(ctx, nil, &types.CodePatch{
			ID: uuid.New(), StoreID: uuid.New(), FilePath: "assets/a.js",
			PatchName: "p", ChangeType: types.ChangeTypeManualEdit,
			UnifiedDiff: "x", Status: status, CreatedBy: uuid.New(),
			ReleaseID: &releaseID,
		}); err != nil {
			t.Fatalf("create %s patch: %v", status, err)
		}
	}

	updated, err := patchRepo.UpdateStatusByRelease(ctx, nil, releaseID,
		[]string{types.PatchStatusOpen, types.PatchStatusReadyForReview},
		types.PatchStatusPublished)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 rows updated, got %d", updated)
	}

	var published int64
	if err := db.Model(&types.CodePatch{}).
		Where("release_id = ? AND status = ?", releaseID, types.PatchStatusPublished).
		Count(&published).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected 2 published rows, got %d", published)
	}
}
