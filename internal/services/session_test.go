package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/threadmill/storefront-backend/internal/types"
)

func TestUpsertPatchAccumulatesAutosaves(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	sessionID := uuid.New()
	filePath := "assets/theme.js"
	baseline := "let count = 0;\n"

	stack.seedBaseline(t, storeID, filePath, baseline)

	opts := UpsertOptions{
		SessionID:  sessionID,
		StoreID:    storeID,
		CreatedBy:  userID,
		ChangeType: types.ChangeTypeManualEdit,
	}

	var patchID uuid.UUID
	for i := 1; i <= 5; i++ {
		modified := fmt.Sprintf("let count = %d;\n", i)
		result, err := stack.editSession.UpsertPatch(ctx, filePath, modified, opts)
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if i == 1 {
			if result.Action != PatchActionCreated {
				t.Fatalf("first save should create, got %q", result.Action)
			}
			patchID = result.PatchID
		} else {
			if result.Action != PatchActionUpdated {
				t.Fatalf("save %d should update, got %q", i, result.Action)
			}
			if result.PatchID != patchID {
				t.Fatalf("save %d landed on patch %s, expected %s", i, result.PatchID, patchID)
			}
		}
	}

	var rowCount int64
	if err := stack.db.Model(&types.CodePatch{}).
		Where("store_id = ? AND file_path = ?", storeID, filePath).
		Count(&rowCount).Error; err != nil {
		t.Fatalf("count patches: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("five saves should leave one row, got %d", rowCount)
	}

	patch, err := stack.patches.GetByID(ctx, nil, patchID)
	if err != nil {
		t.Fatalf("load patch: %v", err)
	}
	if patch.Status != types.PatchStatusOpen {
		t.Fatalf("accumulating patch should stay open, got %q", patch.Status)
	}
	if got := strings.Count(patch.ChangeDescription, "[autosaved"); got != 4 {
		t.Fatalf("expected 4 autosave stamps, got %d: %q", got, patch.ChangeDescription)
	}
	if got := strings.Count(patch.ChangeDescription, "[created"); got != 1 {
		t.Fatalf("expected 1 creation stamp, got %d", got)
	}
	// The diff always reflects the latest save, not an accumulation of
	// intermediate ones.
	if !strings.Contains(patch.UnifiedDiff, "let count = 5;") {
		t.Fatalf("diff should target the final code: %q", patch.UnifiedDiff)
	}
	if strings.Contains(patch.UnifiedDiff, "let count = 3;") {
		t.Fatal("intermediate saves must not survive in the diff")
	}
}

func TestUpsertPatchNoChanges(t *testing.T) {
	stack := newTestStack(t)
	storeID := uuid.New()
	filePath := "assets/theme.js"
	baseline := "let count = 0;\n"
	stack.seedBaseline(t, storeID, filePath, baseline)

	_, err := stack.editSession.UpsertPatch(context.Background(), filePath, "let count = 0;\r\n", UpsertOptions{
		StoreID:    storeID,
		CreatedBy:  uuid.New(),
		ChangeType: types.ChangeTypeManualEdit,
	})
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges for line-ending-only difference, got %v", err)
	}
}

func TestUpsertPatchGeneratedAlwaysCreates(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	filePath := "assets/theme.js"
	stack.seedBaseline(t, storeID, filePath, "v = 0\n")

	opts := UpsertOptions{
		StoreID:    storeID,
		CreatedBy:  userID,
		ChangeType: types.ChangeTypeGenerated,
	}
	first, err := stack.editSession.UpsertPatch(ctx, filePath, "v = 1\n", opts)
	if err != nil {
		t.Fatalf("first generated save: %v", err)
	}
	second, err := stack.editSession.UpsertPatch(ctx, filePath, "v = 2\n", opts)
	if err != nil {
		t.Fatalf("second generated save: %v", err)
	}
	if first.Action != PatchActionCreated || second.Action != PatchActionCreated {
		t.Fatal("generated changes never fold into an existing patch")
	}
	if first.PatchID == second.PatchID {
		t.Fatal("expected two distinct patch rows")
	}
}

func TestUpsertPatchStructuralDiffForMarkup(t *testing.T) {
	stack := newTestStack(t)
	storeID := uuid.New()
	filePath := "templates/hero.liquid"
	stack.seedBaseline(t, storeID, filePath, "<h1>Summer Sale</h1>")

	result, err := stack.editSession.UpsertPatch(context.Background(), filePath, "<h1>Winter Sale</h1>", UpsertOptions{
		StoreID:    storeID,
		CreatedBy:  uuid.New(),
		ChangeType: types.ChangeTypeManualEdit,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	patch, err := stack.patches.GetByID(context.Background(), nil, result.PatchID)
	if err != nil {
		t.Fatalf("load patch: %v", err)
	}
	if len(patch.StructuralDiff) == 0 {
		t.Fatal("markup edits should carry a structural diff")
	}
	raw := string(patch.StructuralDiff)
	if !strings.Contains(raw, "Summer Sale") || !strings.Contains(raw, "Winter Sale") {
		t.Fatalf("structural diff should pair old and new text: %s", raw)
	}
}

func TestFinalizeMovesSessionPatchesToReview(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	sessionID := uuid.New()

	for i, fp := range []string{"assets/a.js", "assets/b.js"} {
		stack.seedBaseline(t, storeID, fp, "v = 0\n")
		_, err := stack.editSession.UpsertPatch(ctx, fp, fmt.Sprintf("v = %d\n", i+1), UpsertOptions{
			SessionID:  sessionID,
			StoreID:    storeID,
			CreatedBy:  userID,
			ChangeType: types.ChangeTypeManualEdit,
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", fp, err)
		}
	}

	count, err := stack.editSession.Finalize(ctx, sessionID, FinalizeOptions{
		StoreID:   storeID,
		CreatedBy: userID,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 finalized patches, got %d", count)
	}

	var open int64
	if err := stack.db.Model(&types.CodePatch{}).
		Where("session_id = ? AND status = ?", sessionID, types.PatchStatusOpen).
		Count(&open).Error; err != nil {
		t.Fatalf("count open: %v", err)
	}
	if open != 0 {
		t.Fatalf("no session patch should remain open, got %d", open)
	}

	var reviewed types.CodePatch
	if err := stack.db.Where("session_id = ?", sessionID).First(&reviewed).Error; err != nil {
		t.Fatalf("load finalized patch: %v", err)
	}
	if reviewed.Status != types.PatchStatusReadyForReview {
		t.Fatalf("expected ready_for_review, got %q", reviewed.Status)
	}
	if !strings.Contains(reviewed.ChangeDescription, "[finalized") {
		t.Fatalf("description should carry a finalize stamp: %q", reviewed.ChangeDescription)
	}

	// Finalizing again is a no-op.
	count, err = stack.editSession.Finalize(ctx, sessionID, FinalizeOptions{
		StoreID:   storeID,
		CreatedBy: userID,
	})
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if count != 0 {
		t.Fatalf("second finalize should touch nothing, got %d", count)
	}
}
