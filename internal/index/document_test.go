package index

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDocKey(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"https://example.com/product/1", "d4cd20a9501f784faf20b4f214de8a2e"},
		{"a", "ca978112ca1bbdcafac231b39a23dc4d"},
	}
	for _, tt := range tests {
		if got := DocKey(tt.id); got != tt.want {
			t.Errorf("DocKey(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
	if len(DocKey("anything")) != 32 {
		t.Error("DocKey should be 32 hex characters")
	}
}

func TestBuildDocument(t *testing.T) {
	obj := map[string]any{
		"@id":    "https://example.com/product/1",
		"@type":  []any{"Product", "Offer"},
		"name":   "widget",
		"rating": float64(4),
		"offers": map[string]any{"price": "9.99"},
	}
	emb := []float32{0.1, 0.2}

	doc := BuildDocument("https://example.com/product/1", "https://example.com", obj, emb)

	if doc.ID != DocKey("https://example.com/product/1") {
		t.Errorf("ID = %q, want doc key", doc.ID)
	}
	if doc.URL != "https://example.com/product/1" {
		t.Errorf("URL = %q", doc.URL)
	}
	if doc.Site != "https://example.com" {
		t.Errorf("Site = %q", doc.Site)
	}
	if doc.Type != "Product, Offer" {
		t.Errorf("Type = %q, want %q", doc.Type, "Product, Offer")
	}
	want := `@id: https://example.com/product/1 @type: ["Product","Offer"] name: widget offers: {"price":"9.99"}`
	if doc.Content != want {
		t.Errorf("Content = %q, want %q", doc.Content, want)
	}
	if _, err := time.Parse(time.RFC3339, doc.Timestamp); err != nil {
		t.Errorf("Timestamp %q does not parse: %v", doc.Timestamp, err)
	}
	if len(doc.Embedding) != 2 {
		t.Errorf("Embedding = %v", doc.Embedding)
	}
}

func TestBuildDocumentTypeFallback(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
		want string
	}{
		{"missing", map[string]any{"@id": "x"}, "Unknown"},
		{"string", map[string]any{"@type": "Recipe"}, "Recipe"},
		{"empty list", map[string]any{"@type": []any{}}, "Unknown"},
		{"non-string list", map[string]any{"@type": []any{float64(1)}}, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := BuildDocument("id", "site", tt.obj, nil)
			if doc.Type != tt.want {
				t.Errorf("Type = %q, want %q", doc.Type, tt.want)
			}
		})
	}
}

func TestContentCaps(t *testing.T) {
	big := strings.Repeat("x", 12000)
	doc := BuildDocument("id", "site", map[string]any{"body": big}, nil)
	if len(doc.Content) > maxContentChars {
		t.Errorf("content length %d exceeds cap %d", len(doc.Content), maxContentChars)
	}

	nested := make([]any, 0, 200)
	for range 200 {
		nested = append(nested, "filler")
	}
	doc = BuildDocument("id", "site", map[string]any{"list": nested}, nil)
	if got := len(doc.Content); got > maxNestedChars+len("list: ") {
		t.Errorf("nested value not truncated, content length %d", got)
	}
}

func TestContentSkipsNonStringScalars(t *testing.T) {
	doc := BuildDocument("id", "site", map[string]any{
		"count": float64(3),
		"live":  true,
		"name":  "thing",
	}, nil)
	if doc.Content != "name: thing" {
		t.Errorf("Content = %q, want %q", doc.Content, "name: thing")
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := "ééé"
	got := truncate(s, 3)
	if got != "é" {
		t.Errorf("truncate(%q, 3) = %q, want %q", s, got, "é")
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate below limit = %q", got)
	}
}

func TestEmbedTextDeterministic(t *testing.T) {
	obj := map[string]any{"b": "2", "a": "1", "c": map[string]any{"z": "9", "y": "8"}}
	first := EmbedText(obj)
	if first == "" {
		t.Fatal("EmbedText returned empty")
	}
	for range 5 {
		if got := EmbedText(obj); got != first {
			t.Fatalf("EmbedText not deterministic: %q vs %q", got, first)
		}
	}
}

func TestZeroEmbedder(t *testing.T) {
	vecs, err := ZeroEmbedder{}.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for _, v := range vecs {
		if len(v) != EmbeddingDims {
			t.Fatalf("vector length = %d, want %d", len(v), EmbeddingDims)
		}
	}
}

func TestStubDropsEverything(t *testing.T) {
	s := NewStub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if err := s.EnsureIndex(ctx); err != nil {
		t.Errorf("EnsureIndex: %v", err)
	}
	if err := s.AddBatch(ctx, []Item{{ID: "a"}}); err != nil {
		t.Errorf("AddBatch: %v", err)
	}
	if err := s.DeleteBatch(ctx, []string{"a"}); err != nil {
		t.Errorf("DeleteBatch: %v", err)
	}
}
