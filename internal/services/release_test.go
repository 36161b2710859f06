package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/threadmill/storefront-backend/internal/types"
)

func TestPublishMovesDraftPatchesLive(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()

	release := stack.seedRelease(t, &types.CodeRelease{StoreID: storeID, VersionName: "v2"})
	open := stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: "assets/a.js", UnifiedDiff: "x",
		ReleaseID: &release.ID, Status: types.PatchStatusOpen,
	})
	ready := stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: "assets/a.js", UnifiedDiff: "x",
		ReleaseID: &release.ID, Status: types.PatchStatusReadyForReview,
	})
	unrelated := stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: "assets/a.js", UnifiedDiff: "x",
		Status: types.PatchStatusOpen,
	})

	if err := stack.release.Publish(ctx, release.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := stack.releases.GetByID(ctx, nil, release.ID)
	if err != nil {
		t.Fatalf("load release: %v", err)
	}
	if got.Status != types.ReleaseStatusPublished {
		t.Fatalf("expected published release, got %q", got.Status)
	}
	if got.PublishedAt == nil {
		t.Fatal("published_at should be stamped")
	}

	for _, id := range []uuid.UUID{open.ID, ready.ID} {
		p, err := stack.patches.GetByID(ctx, nil, id)
		if err != nil {
			t.Fatalf("load patch: %v", err)
		}
		if p.Status != types.PatchStatusPublished {
			t.Fatalf("patch %s should be published, got %q", id, p.Status)
		}
	}

	p, err := stack.patches.GetByID(ctx, nil, unrelated.ID)
	if err != nil {
		t.Fatalf("load unrelated patch: %v", err)
	}
	if p.Status != types.PatchStatusOpen {
		t.Fatalf("patch outside the release must not move, got %q", p.Status)
	}
}

func TestPublishRequiresDraft(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	release := stack.seedRelease(t, &types.CodeRelease{StoreID: uuid.New(), VersionName: "v2"})

	if err := stack.release.Publish(ctx, release.ID); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := stack.release.Publish(ctx, release.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second publish should be rejected, got %v", err)
	}
}

func TestPublishUnknownRelease(t *testing.T) {
	stack := newTestStack(t)
	err := stack.release.Publish(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown release")
	}
}

func TestRollbackRetiresEveryReleasePatch(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()

	release := stack.seedRelease(t, &types.CodeRelease{StoreID: storeID, VersionName: "v3"})
	published := stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: "assets/a.js", UnifiedDiff: "x",
		ReleaseID: &release.ID, Status: types.PatchStatusPublished,
	})
	open := stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: "assets/a.js", UnifiedDiff: "x",
		ReleaseID: &release.ID, Status: types.PatchStatusOpen,
	})

	if err := stack.release.Rollback(ctx, release.ID, "broken checkout button"); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := stack.releases.GetByID(ctx, nil, release.ID)
	if err != nil {
		t.Fatalf("load release: %v", err)
	}
	if got.Status != types.ReleaseStatusRolledBack {
		t.Fatalf("expected rolled_back, got %q", got.Status)
	}
	if got.RolledBackAt == nil || got.RollbackReason != "broken checkout button" {
		t.Fatalf("rollback metadata missing: %+v", got)
	}

	for _, id := range []uuid.UUID{published.ID, open.ID} {
		p, err := stack.patches.GetByID(ctx, nil, id)
		if err != nil {
			t.Fatalf("load patch: %v", err)
		}
		if p.Status != types.PatchStatusRolledBack {
			t.Fatalf("patch %s should be rolled back, got %q", id, p.Status)
		}
	}

	// Rolled back is terminal.
	if err := stack.release.Rollback(ctx, release.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second rollback should be rejected, got %v", err)
	}
	if err := stack.release.Publish(ctx, release.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("publishing a rolled-back release should be rejected, got %v", err)
	}
}

func TestRollbackRestoresBaselineServing(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()
	filePath := "assets/main.js"
	baseline := "const price = 100;\n"

	stack.seedBaseline(t, storeID, filePath, baseline)
	release := stack.seedRelease(t, &types.CodeRelease{StoreID: storeID, VersionName: "discount"})
	stack.seedPatch(t, &types.CodePatch{
		StoreID: storeID, FilePath: filePath, PatchName: "apply discount",
		UnifiedDiff: stack.mustDiff(t, baseline, "const price = 80;\n"),
		ReleaseID:   &release.ID, Status: types.PatchStatusOpen,
	})

	if err := stack.release.Publish(ctx, release.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	live, err := stack.composer.ApplyPatches(ctx, filePath, ApplyOptions{StoreID: storeID})
	if err != nil {
		t.Fatalf("apply after publish: %v", err)
	}
	if !live.HasPatches || live.PatchedCode != "const price = 80;\n" {
		t.Fatalf("expected discounted code after publish, got %+v", live)
	}

	if err := stack.release.Rollback(ctx, release.ID, "margin too thin"); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	// Rollback flushes the cache, so the next request recomposes and the
	// retired patch no longer participates.
	after, err := stack.composer.ApplyPatches(ctx, filePath, ApplyOptions{StoreID: storeID})
	if err != nil {
		t.Fatalf("apply after rollback: %v", err)
	}
	if after.HasPatches {
		t.Fatal("rolled-back patch should not be selected")
	}
	if after.PatchedCode != baseline {
		t.Fatalf("expected baseline serving after rollback, got %q", after.PatchedCode)
	}
}

func TestCreateReleaseDefaults(t *testing.T) {
	stack := newTestStack(t)
	release, err := stack.release.Create(context.Background(), CreateReleaseOptions{
		StoreID:     uuid.New(),
		VersionName: "v1",
		CreatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if release.Status != types.ReleaseStatusDraft {
		t.Fatalf("new releases start as drafts, got %q", release.Status)
	}
	if release.ReleaseType != types.ReleaseTypeStandard {
		t.Fatalf("expected standard release type, got %q", release.ReleaseType)
	}
	if release.VersionNumber != 1 {
		t.Fatalf("expected version number 1, got %d", release.VersionNumber)
	}
}
