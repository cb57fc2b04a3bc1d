package schemascout_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/schemascout/schemascout"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := schemascout.OpenSQLite(ctx, filepath.Join(t.TempDir(), "scout.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	if err := store.AddSite(ctx, "example.com", "google:123", schemascout.DefaultProcessIntervalHours); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}

	site, err := store.GetSite(ctx, "example.com", "google:123")
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if !site.IsActive {
		t.Error("expected a fresh site to be active")
	}
	if site.ProcessIntervalHours != schemascout.DefaultProcessIntervalHours {
		t.Errorf("interval = %d, want %d", site.ProcessIntervalHours, schemascout.DefaultProcessIntervalHours)
	}
}

func TestNormalizeSiteURL(t *testing.T) {
	if got := schemascout.NormalizeSiteURL("https://www.example.com/"); got != "example.com" {
		t.Errorf("NormalizeSiteURL = %q, want %q", got, "example.com")
	}
}

// Test that exported constants have correct wire values
func TestConstants(t *testing.T) {
	if schemascout.JobProcessFile != "process_file" {
		t.Errorf("JobProcessFile = %q, want %q", schemascout.JobProcessFile, "process_file")
	}
	if schemascout.JobProcessRemovedFile != "process_removed_file" {
		t.Errorf("JobProcessRemovedFile = %q, want %q", schemascout.JobProcessRemovedFile, "process_removed_file")
	}

	if schemascout.ErrorExtractionFailed != "extraction_failed" {
		t.Errorf("ErrorExtractionFailed = %q, want %q", schemascout.ErrorExtractionFailed, "extraction_failed")
	}
	if schemascout.ErrorNoIDsFound != "no_ids_found" {
		t.Errorf("ErrorNoIDsFound = %q, want %q", schemascout.ErrorNoIDsFound, "no_ids_found")
	}
	if schemascout.ErrorVectorAddFailed != "vector_db_add_failed" {
		t.Errorf("ErrorVectorAddFailed = %q, want %q", schemascout.ErrorVectorAddFailed, "vector_db_add_failed")
	}
	if schemascout.ErrorVectorDeleteFailed != "vector_db_delete_failed" {
		t.Errorf("ErrorVectorDeleteFailed = %q, want %q", schemascout.ErrorVectorDeleteFailed, "vector_db_delete_failed")
	}

	if schemascout.ManualSchemaMap != "manual" {
		t.Errorf("ManualSchemaMap = %q, want %q", schemascout.ManualSchemaMap, "manual")
	}
}
