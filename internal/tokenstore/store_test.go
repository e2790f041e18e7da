package tokenstore

import (
	"context"
	"testing"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSetAndGetToken(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetToken(ctx, "image_gen"); err != nil || ok {
		t.Fatalf("expected no token set, got ok=%v err=%v", ok, err)
	}

	if err := store.SetToken(ctx, "image_gen", "sk-abc123"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	token, ok, err := store.GetToken(ctx, "image_gen")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if !ok || token != "sk-abc123" {
		t.Fatalf("GetToken = (%q, %v), want (%q, true)", token, ok, "sk-abc123")
	}
}

func TestSetTokenOverwritesExisting(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SetToken(ctx, "tts", "old-token"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := store.SetToken(ctx, "tts", "new-token"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	token, ok, err := store.GetToken(ctx, "tts")
	if err != nil || !ok || token != "new-token" {
		t.Fatalf("GetToken = (%q, %v, %v), want (%q, true, nil)", token, ok, err, "new-token")
	}
}

func TestRecordAndGetArtifact(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetArtifact(ctx, "trace-1-image-0", "image_path"); err != nil || ok {
		t.Fatalf("expected no artifact recorded, got ok=%v err=%v", ok, err)
	}

	if err := store.RecordArtifact(ctx, "trace-1-image-0", "image_path", "/out/scene-0.png"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}

	value, ok, err := store.GetArtifact(ctx, "trace-1-image-0", "image_path")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if !ok || value != "/out/scene-0.png" {
		t.Fatalf("GetArtifact = (%q, %v), want (%q, true)", value, ok, "/out/scene-0.png")
	}
}

func TestRecordArtifactOverwritesSameKey(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordArtifact(ctx, "task-1", "output_path", "/v1/out.mp4"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}
	if err := store.RecordArtifact(ctx, "task-1", "output_path", "/v2/out.mp4"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}

	value, ok, err := store.GetArtifact(ctx, "task-1", "output_path")
	if err != nil || !ok || value != "/v2/out.mp4" {
		t.Fatalf("GetArtifact = (%q, %v, %v), want (%q, true, nil)", value, ok, err, "/v2/out.mp4")
	}
}

func TestArtifactsAreScopedPerTask(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordArtifact(ctx, "task-a", "image_path", "/a.png"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}
	if err := store.RecordArtifact(ctx, "task-b", "image_path", "/b.png"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}

	va, _, _ := store.GetArtifact(ctx, "task-a", "image_path")
	vb, _, _ := store.GetArtifact(ctx, "task-b", "image_path")
	if va != "/a.png" || vb != "/b.png" {
		t.Fatalf("artifacts leaked across tasks: task-a=%q task-b=%q", va, vb)
	}
}
