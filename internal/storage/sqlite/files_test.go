package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

const testMap = "https://example.com/schema_map.xml"

func TestDiffSiteFilesInitialDiscovery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []types.MapEntry{
		{FileURL: "https://example.com/a.json", ContentType: "application/json;type=schema.org"},
		{FileURL: "https://example.com/b.tsv", ContentType: "text/tsv;type=schema.org"},
	}
	diff, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap, entries)
	if err != nil {
		t.Fatalf("DiffSiteFiles failed: %v", err)
	}
	if len(diff.Added) != 2 || len(diff.Removed) != 0 {
		t.Fatalf("diff = %+v, want 2 added / 0 removed", diff)
	}
	// Content type rides along for the enqueue.
	if diff.Added[0].ContentType == "" {
		t.Error("added entry lost its content type")
	}

	f, err := store.GetFile(ctx, "https://example.com/a.json", "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !f.IsActive || f.SchemaMap != testMap || f.SiteURL != "example.com" {
		t.Errorf("unexpected file row: %+v", f)
	}
}

func TestDiffSiteFilesConvergent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []types.MapEntry{{FileURL: "https://example.com/a.json"}}
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap, entries); err != nil {
		t.Fatalf("first diff failed: %v", err)
	}

	// Applying the same schema map again yields no net change.
	diff, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap, entries)
	if err != nil {
		t.Fatalf("second diff failed: %v", err)
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Errorf("second diff = %+v, want empty", diff)
	}
}

func TestDiffSiteFilesTombstoneAndReactivate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const fileURL = "https://example.com/a.json"
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap,
		[]types.MapEntry{{FileURL: fileURL}}); err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if _, err := store.DiffFileIDs(ctx, fileURL, "u1", []string{"obj-1"}); err != nil {
		t.Fatalf("DiffFileIDs failed: %v", err)
	}

	// Map empties: the file is tombstoned, its ids kept for the removal job.
	diff, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap, nil)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != fileURL {
		t.Fatalf("diff = %+v, want 1 removed", diff)
	}
	f, err := store.GetFile(ctx, fileURL, "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if f.IsActive {
		t.Error("file not tombstoned")
	}
	ids, err := store.ListFileIDs(ctx, fileURL, "u1")
	if err != nil {
		t.Fatalf("ListFileIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("tombstoning dropped id rows: %v", ids)
	}

	// The file reappears under a renamed map: reactivated, map refreshed.
	const newMap = "https://example.com/maps/schema_map.xml"
	diff, err = store.DiffSiteFiles(ctx, "example.com", "u1", newMap,
		[]types.MapEntry{{FileURL: fileURL}})
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(diff.Added) != 1 {
		t.Fatalf("diff = %+v, want 1 added", diff)
	}
	f, err = store.GetFile(ctx, fileURL, "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !f.IsActive || f.SchemaMap != newMap {
		t.Errorf("reactivation incomplete: %+v", f)
	}
	if f.NumberOfItems != 1 {
		t.Errorf("reactivation reset number_of_items: %+v", f)
	}
}

func TestDiffSiteFilesScopedToMap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mapA := "https://example.com/map_a.xml"
	mapB := "https://example.com/map_b.xml"
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", mapA,
		[]types.MapEntry{{FileURL: "https://example.com/a.json"}}); err != nil {
		t.Fatalf("diff A failed: %v", err)
	}
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", mapB,
		[]types.MapEntry{{FileURL: "https://example.com/b.json"}}); err != nil {
		t.Fatalf("diff B failed: %v", err)
	}

	// Emptying map A must not tombstone map B's file.
	diff, err := store.DiffSiteFiles(ctx, "example.com", "u1", mapA, nil)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "https://example.com/a.json" {
		t.Fatalf("diff = %+v, want only a.json removed", diff)
	}
	f, err := store.GetFile(ctx, "https://example.com/b.json", "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !f.IsActive {
		t.Error("sibling map's file was tombstoned")
	}
}

func TestDiffSiteFilesManualFilesUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddManualFile(ctx, "example.com", "u1", "https://example.com/manual.json"); err != nil {
		t.Fatalf("AddManualFile failed: %v", err)
	}

	diff, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap,
		[]types.MapEntry{{FileURL: "https://example.com/a.json"}})
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(diff.Removed) != 0 {
		t.Fatalf("manual file swept into removals: %+v", diff)
	}
	f, err := store.GetFile(ctx, "https://example.com/manual.json", "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !f.IsActive || !f.IsManual || f.SchemaMap != types.ManualSchemaMap {
		t.Errorf("manual file row disturbed: %+v", f)
	}
}

func TestDiffSiteFilesTenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", testMap,
		[]types.MapEntry{{FileURL: "https://example.com/a.json"}}); err != nil {
		t.Fatalf("diff u1 failed: %v", err)
	}

	// u2 sees the same map: its diff is independent of u1's rows.
	diff, err := store.DiffSiteFiles(ctx, "example.com", "u2", testMap,
		[]types.MapEntry{{FileURL: "https://example.com/a.json"}})
	if err != nil {
		t.Fatalf("diff u2 failed: %v", err)
	}
	if len(diff.Added) != 1 {
		t.Fatalf("u2 diff = %+v, want 1 added", diff)
	}

	// Emptying u2's view leaves u1's file active.
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u2", testMap, nil); err != nil {
		t.Fatalf("diff u2 failed: %v", err)
	}
	f, err := store.GetFile(ctx, "https://example.com/a.json", "u1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !f.IsActive {
		t.Error("u2's removal tombstoned u1's file")
	}
}

func TestDeleteFileDropsIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedFile(t, store, "example.com", "u1", testMap, "https://example.com/a.json")
	if _, err := store.DiffFileIDs(ctx, "https://example.com/a.json", "u1", []string{"x"}); err != nil {
		t.Fatalf("DiffFileIDs failed: %v", err)
	}

	if err := store.DeleteFile(ctx, "https://example.com/a.json", "u1"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := store.GetFile(ctx, "https://example.com/a.json", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	ids, err := store.ListFileIDs(ctx, "https://example.com/a.json", "u1")
	if err != nil {
		t.Fatalf("ListFileIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("id rows outlived their file: %v", ids)
	}
}
