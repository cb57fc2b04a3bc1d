// Package extract downloads schema map payload files and pulls the
// schema.org objects out of them.
//
// Two payload shapes exist. TSV payloads carry one "<url>\t<json>"
// record per line. JSON payloads are a single document holding either
// one object or an array of objects. Both shapes funnel into the same
// object walk: every object with an @id is a candidate, objects whose
// @type falls in the skip set are dropped, and duplicate @ids keep the
// first occurrence.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// FetchTimeout bounds a single payload download.
const FetchTimeout = 30 * time.Second

// maxLineBytes sizes the TSV scanner; each line carries an entire JSON
// document.
const maxLineBytes = 16 << 20

// skipTypes lists schema.org types that never reach the index. These
// are page scaffolding (navigation, breadcrumbs, site metadata) rather
// than content.
var skipTypes = []string{
	"ListItem", "ItemList", "Organization", "BreadcrumbList",
	"Breadcrumb", "WebSite", "SearchAction", "SiteNavigationElement",
	"WebPageElement", "WebPage", "NewsMediaOrganization",
	"MerchantReturnPolicy", "ReturnPolicy", "CollectionPage",
	"Brand", "Corporation", "ReadAction",
}

// Skipped reports whether an object's @type matches the skip set,
// either as a plain string or as any element of a list of strings.
func Skipped(typ any) bool {
	switch t := typ.(type) {
	case string:
		return slices.Contains(skipTypes, t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && slices.Contains(skipTypes, s) {
				return true
			}
		}
	}
	return false
}

// Result holds the objects extracted from one payload. IDs preserves
// first-seen order; Objects is keyed by @id.
type Result struct {
	IDs     []string
	Objects map[string]map[string]any
}

func newResult() *Result {
	return &Result{Objects: make(map[string]map[string]any)}
}

// Object returns the extracted object for id, or nil if the payload
// did not contain it.
func (r *Result) Object(id string) map[string]any {
	return r.Objects[id]
}

func (r *Result) add(obj map[string]any) {
	id, ok := obj["@id"].(string)
	if !ok || id == "" {
		return
	}
	if Skipped(obj["@type"]) {
		return
	}
	if _, seen := r.Objects[id]; seen {
		return
	}
	r.IDs = append(r.IDs, id)
	r.Objects[id] = obj
}

// collect merges one decoded JSON document into res. A singleton
// object is treated as a one-element list. Top-level objects are
// walked first; then, for each top-level object without an @id of its
// own, a @graph array is descended exactly one level.
func collect(res *Result, doc any) {
	var list []any
	switch d := doc.(type) {
	case []any:
		list = d
	case map[string]any:
		list = []any{d}
	default:
		return
	}
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			res.add(obj)
		}
	}
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, hasID := obj["@id"]; hasID {
			continue
		}
		graph, ok := obj["@graph"].([]any)
		if !ok {
			continue
		}
		for _, g := range graph {
			if gobj, ok := g.(map[string]any); ok {
				res.add(gobj)
			}
		}
	}
}

// Extractor fetches payload files and extracts their schema.org
// objects.
type Extractor struct {
	client *http.Client
	logger *slog.Logger
}

// New returns an Extractor with a 30 second fetch timeout.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: &http.Client{Timeout: FetchTimeout},
		logger: logger,
	}
}

// FromURL downloads the payload at url and extracts its objects.
// contentType is the hint recorded at discovery time; a "tsv"
// substring selects line-oriented parsing, anything else is treated as
// JSON.
//
// Network failures, non-2xx responses, and JSON documents that do not
// decode return an error. A payload that decodes but yields no
// qualifying objects returns an empty Result with a nil error.
func (e *Extractor) FromURL(ctx context.Context, url, contentType string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	e.logger.Debug("fetched payload", "url", url, "status", resp.StatusCode, "bytes", len(body))

	if strings.Contains(strings.ToLower(contentType), "tsv") {
		return e.parseTSV(url, body), nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	res := newResult()
	collect(res, doc)
	return res, nil
}

// parseTSV handles line-oriented payloads. Lines without a tab
// separator or with a JSON half that does not decode are skipped; the
// rest of the file is still processed.
func (e *Extractor) parseTSV(url string, body []byte) *Result {
	res := newResult()
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			e.logger.Warn("tsv line has no tab separator, skipping", "url", url, "line", lineNo)
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(line[tab+1:]), &doc); err != nil {
			e.logger.Warn("tsv line does not decode, skipping", "url", url, "line", lineNo, "error", err)
			continue
		}
		collect(res, doc)
	}
	if err := sc.Err(); err != nil {
		e.logger.Warn("tsv scan stopped early", "url", url, "error", err)
	}
	return res
}
