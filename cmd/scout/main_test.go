package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schemascout/schemascout/internal/config"
)

// setupCmdTest points every backend at a temp directory and resets the
// globals PersistentPreRun would normally populate.
func setupCmdTest(t *testing.T) {
	t.Helper()
	rootCtx = context.Background()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	t.Setenv("SCOUT_CONFIG", "")
	t.Setenv("SCOUT_OTEL_ENABLED", "")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "scout.db"))
	t.Setenv("QUEUE_TYPE", "file")
	t.Setenv("QUEUE_DIR", filepath.Join(dir, "queue"))
	t.Setenv("QUEUE_JOURNAL", "")
	t.Setenv("FETCH_LOG_FILE", "")
	t.Setenv("VECTOR_DB_LOG_FILE", "")

	if err := config.Initialize(""); err != nil {
		t.Fatalf("config.Initialize: %v", err)
	}
	t.Cleanup(func() { jsonOutput = false })
}

// captureStdout runs fn with stdout redirected into a buffer.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	setupCmdTest(t)

	t.Run("plain text", func(t *testing.T) {
		jsonOutput = false
		out := captureStdout(t, func() {
			versionCmd.Run(versionCmd, nil)
		})
		if !strings.Contains(out, "scout version") {
			t.Errorf("expected 'scout version' in output, got: %s", out)
		}
		if !strings.Contains(out, Version) {
			t.Errorf("expected version %s in output, got: %s", Version, out)
		}
	})

	t.Run("json", func(t *testing.T) {
		jsonOutput = true
		out := captureStdout(t, func() {
			versionCmd.Run(versionCmd, nil)
		})
		var result map[string]string
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("parse JSON output: %v", err)
		}
		if result["version"] != Version {
			t.Errorf("version = %q, want %q", result["version"], Version)
		}
		if result["build"] == "" {
			t.Error("expected non-empty build field")
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" Error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSiteLifecycle(t *testing.T) {
	setupCmdTest(t)

	t.Run("add normalizes the url", func(t *testing.T) {
		jsonOutput = false
		_ = siteAddCmd.Flags().Set("user", "google:u1")
		out := captureStdout(t, func() {
			siteAddCmd.Run(siteAddCmd, []string{"https://www.example.com/"})
		})
		if !strings.Contains(out, "Added example.com for google:u1") {
			t.Errorf("unexpected add output: %s", out)
		}
	})

	t.Run("add-file registers and queues", func(t *testing.T) {
		jsonOutput = false
		_ = siteAddFileCmd.Flags().Set("user", "google:u1")
		out := captureStdout(t, func() {
			siteAddFileCmd.Run(siteAddFileCmd, []string{"example.com", "https://example.com/products.json"})
		})
		if !strings.Contains(out, "queued it for processing") {
			t.Errorf("unexpected add-file output: %s", out)
		}
	})

	t.Run("status counts the file", func(t *testing.T) {
		jsonOutput = true
		_ = siteStatusCmd.Flags().Set("user", "google:u1")
		out := captureStdout(t, func() {
			siteStatusCmd.Run(siteStatusCmd, []string{"example.com"})
		})
		var st map[string]any
		if err := json.Unmarshal([]byte(out), &st); err != nil {
			t.Fatalf("parse status JSON: %v (output: %s)", err, out)
		}
		if st["site_url"] != "example.com" {
			t.Errorf("site_url = %v", st["site_url"])
		}
		if st["file_count"] != float64(1) {
			t.Errorf("file_count = %v, want 1", st["file_count"])
		}
	})

	t.Run("list shows the site", func(t *testing.T) {
		jsonOutput = true
		_ = siteListCmd.Flags().Set("user", "")
		out := captureStdout(t, func() {
			siteListCmd.Run(siteListCmd, nil)
		})
		var sites []map[string]any
		if err := json.Unmarshal([]byte(out), &sites); err != nil {
			t.Fatalf("parse list JSON: %v", err)
		}
		if len(sites) != 1 || sites[0]["site_url"] != "example.com" {
			t.Errorf("unexpected site list: %v", sites)
		}
	})

	t.Run("remove queues one drain job per file", func(t *testing.T) {
		jsonOutput = true
		_ = siteRemoveCmd.Flags().Set("user", "google:u1")
		out := captureStdout(t, func() {
			siteRemoveCmd.Run(siteRemoveCmd, []string{"example.com"})
		})
		var res map[string]any
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("parse remove JSON: %v", err)
		}
		if res["files_queued"] != float64(1) {
			t.Errorf("files_queued = %v, want 1", res["files_queued"])
		}
	})

	t.Run("list is empty after remove", func(t *testing.T) {
		jsonOutput = true
		_ = siteListCmd.Flags().Set("user", "")
		out := captureStdout(t, func() {
			siteListCmd.Run(siteListCmd, nil)
		})
		var sites []map[string]any
		if err := json.Unmarshal([]byte(out), &sites); err != nil {
			t.Fatalf("parse list JSON: %v", err)
		}
		if len(sites) != 0 {
			t.Errorf("expected no sites, got %v", sites)
		}
	})
}

func TestUserCreateAndShow(t *testing.T) {
	setupCmdTest(t)

	jsonOutput = true
	_ = userCreateCmd.Flags().Set("email", "dev@example.com")
	_ = userCreateCmd.Flags().Set("name", "Dev")

	out := captureStdout(t, func() {
		userCreateCmd.Run(userCreateCmd, []string{"google", "1234"})
	})
	var created map[string]any
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("parse create JSON: %v", err)
	}
	if created["user_id"] != "google:1234" {
		t.Errorf("user_id = %v", created["user_id"])
	}
	apiKey, _ := created["api_key"].(string)
	if !strings.HasPrefix(apiKey, "sk_") {
		t.Errorf("api_key = %q, want sk_ prefix", apiKey)
	}

	t.Run("create is an upsert", func(t *testing.T) {
		out := captureStdout(t, func() {
			userCreateCmd.Run(userCreateCmd, []string{"google", "1234"})
		})
		var again map[string]any
		if err := json.Unmarshal([]byte(out), &again); err != nil {
			t.Fatalf("parse JSON: %v", err)
		}
		if again["api_key"] != apiKey {
			t.Errorf("api key changed across creates: %v != %v", again["api_key"], apiKey)
		}
	})

	t.Run("show resolves the api key", func(t *testing.T) {
		out := captureStdout(t, func() {
			userShowCmd.Run(userShowCmd, []string{apiKey})
		})
		var shown map[string]any
		if err := json.Unmarshal([]byte(out), &shown); err != nil {
			t.Fatalf("parse show JSON: %v", err)
		}
		if shown["user_id"] != "google:1234" {
			t.Errorf("show by key returned %v", shown["user_id"])
		}
	})

	t.Run("show resolves the id", func(t *testing.T) {
		out := captureStdout(t, func() {
			userShowCmd.Run(userShowCmd, []string{"google:1234"})
		})
		var shown map[string]any
		if err := json.Unmarshal([]byte(out), &shown); err != nil {
			t.Fatalf("parse show JSON: %v", err)
		}
		if shown["email"] != "dev@example.com" {
			t.Errorf("email = %v", shown["email"])
		}
	})
}

func TestQueueProvisionCommand(t *testing.T) {
	setupCmdTest(t)

	jsonOutput = false
	out := captureStdout(t, func() {
		queueProvisionCmd.Run(queueProvisionCmd, nil)
	})
	if !strings.Contains(out, "Queue provisioned (file)") {
		t.Errorf("unexpected provision output: %s", out)
	}
}
