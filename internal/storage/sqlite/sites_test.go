package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

func TestAddSiteAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddSite(ctx, "example.com", "u1", 12); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}

	site, err := store.GetSite(ctx, "example.com", "u1")
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if site.ProcessIntervalHours != 12 || !site.IsActive || site.LastProcessed != nil {
		t.Errorf("unexpected site row: %+v", site)
	}

	// Re-adding must not reset the interval.
	if err := store.AddSite(ctx, "example.com", "u1", 48); err != nil {
		t.Fatalf("AddSite (again) failed: %v", err)
	}
	site, err = store.GetSite(ctx, "example.com", "u1")
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if site.ProcessIntervalHours != 12 {
		t.Errorf("re-add clobbered interval: got %d, want 12", site.ProcessIntervalHours)
	}
}

func TestAddSiteDefaultInterval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddSite(ctx, "example.com", "u1", 0); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	site, err := store.GetSite(ctx, "example.com", "u1")
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if site.ProcessIntervalHours != types.DefaultProcessIntervalHours {
		t.Errorf("interval = %d, want default %d", site.ProcessIntervalHours, types.DefaultProcessIntervalHours)
	}
}

func TestGetSiteNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSite(context.Background(), "missing.com", "u1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDueSites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Never processed: due.
	if err := store.AddSite(ctx, "fresh-never.com", "u1", 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	// Processed recently: not due.
	if err := store.AddSite(ctx, "recent.com", "u1", 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	if err := store.TouchSiteProcessed(ctx, "recent.com", "u1", now.Add(-1*time.Hour)); err != nil {
		t.Fatalf("TouchSiteProcessed failed: %v", err)
	}
	// Processed long ago: due.
	if err := store.AddSite(ctx, "stale.com", "u1", 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	if err := store.TouchSiteProcessed(ctx, "stale.com", "u1", now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("TouchSiteProcessed failed: %v", err)
	}
	// Second tenant's stale site is also due.
	if err := store.AddSite(ctx, "stale.com", "u2", 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	if err := store.TouchSiteProcessed(ctx, "stale.com", "u2", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("TouchSiteProcessed failed: %v", err)
	}

	due, err := store.DueSites(ctx, now)
	if err != nil {
		t.Fatalf("DueSites failed: %v", err)
	}

	got := make(map[string]bool)
	for _, s := range due {
		got[s.SiteURL+"|"+s.UserID] = true
	}
	want := []string{"fresh-never.com|u1", "stale.com|u1", "stale.com|u2"}
	if len(got) != len(want) {
		t.Fatalf("due sites = %v, want %v", got, want)
	}
	for _, key := range want {
		if !got[key] {
			t.Errorf("missing due site %s (got %v)", key, got)
		}
	}
}

func TestRemoveSite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddSite(ctx, "example.com", "u1", 24); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}
	if err := store.RemoveSite(ctx, "example.com", "u1"); err != nil {
		t.Fatalf("RemoveSite failed: %v", err)
	}
	if _, err := store.GetSite(ctx, "example.com", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
	if err := store.RemoveSite(ctx, "example.com", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestSiteStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedFile(t, store, "example.com", "u1", "https://example.com/schema_map.xml", "https://example.com/a.json")
	if _, err := store.DiffSiteFiles(ctx, "example.com", "u1", "https://example.com/schema_map.xml",
		[]types.MapEntry{{FileURL: "https://example.com/a.json"}, {FileURL: "https://example.com/b.json"}}); err != nil {
		t.Fatalf("DiffSiteFiles failed: %v", err)
	}

	if _, err := store.DiffFileIDs(ctx, "https://example.com/a.json", "u1", []string{"x", "y"}); err != nil {
		t.Fatalf("DiffFileIDs failed: %v", err)
	}
	if _, err := store.DiffFileIDs(ctx, "https://example.com/b.json", "u1", []string{"z"}); err != nil {
		t.Fatalf("DiffFileIDs failed: %v", err)
	}
	if err := store.LogError(ctx, &types.ProcessingError{
		FileURL: "https://example.com/b.json", UserID: "u1",
		ErrorType: types.ErrorVectorAddFailed, ErrorMessage: "boom",
	}); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	st, err := store.SiteStatus(ctx, "example.com", "u1")
	if err != nil {
		t.Fatalf("SiteStatus failed: %v", err)
	}
	if st.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", st.FileCount)
	}
	if st.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", st.TotalItems)
	}
	if st.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", st.ErrorCount)
	}
	if st.LastReadTime == nil {
		t.Error("LastReadTime not populated")
	}
}
