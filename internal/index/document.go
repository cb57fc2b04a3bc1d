package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxContentChars caps the searchable content field.
	maxContentChars = 10000
	// maxNestedChars caps the JSON dump of a nested value inside the
	// content field.
	maxNestedChars = 500
)

// Document is the wire shape of one index entry.
type Document struct {
	// ID is the index key: a hash of the object's @id, since @ids are
	// URLs and search keys cannot hold URL characters.
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Site      string    `json:"site"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
	Embedding []float32 `json:"embedding"`
}

// DocKey derives the index key for an @id: the first 32 hex characters
// (128 bits) of its SHA-256.
func DocKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:32]
}

// EmbedText is the text representation of an object handed to the
// Embedder: its compact JSON encoding.
func EmbedText(obj map[string]any) string {
	b, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(b)
}

// BuildDocument flattens an extracted object into a Document.
func BuildDocument(id, site string, obj map[string]any, embedding []float32) Document {
	return Document{
		ID:        DocKey(id),
		URL:       id,
		Site:      site,
		Type:      typeOf(obj),
		Content:   contentOf(obj),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Embedding: embedding,
	}
}

func typeOf(obj map[string]any) string {
	switch t := obj["@type"].(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return "Unknown"
}

// contentOf renders an object as "key: value" pairs. String values
// pass through; arrays and nested objects are JSON-dumped and
// truncated; other scalars are left out. Keys are sorted so the same
// object always yields the same document.
func contentOf(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			parts = append(parts, k+": "+v)
		case []any, map[string]any:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			parts = append(parts, k+": "+truncate(string(b), maxNestedChars))
		}
	}
	return truncate(strings.Join(parts, " "), maxContentChars)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
