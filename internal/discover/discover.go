// Package discover resolves the schema maps of a site and reconciles
// the payload files they announce against the store, queueing a job
// for every file that appears or disappears.
//
// Maps are located in three steps: schemamap directives in robots.txt,
// then <site>/schema_map.xml, and finally the site URL itself when it
// already names a map. A map that cannot be fetched or parsed leaves
// its recorded files untouched; only a successfully parsed map is
// authoritative for removal.
package discover

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

// MapFetchTimeout bounds each robots.txt and schema map download.
const MapFetchTimeout = 10 * time.Second

// robotsDirective marks a schema map line in robots.txt, matched
// case-insensitively at the start of the line.
const robotsDirective = "schemamap:"

// Result counts what one discovery pass changed.
type Result struct {
	Maps         int `json:"maps"`
	FilesAdded   int `json:"files_added"`
	FilesQueued  int `json:"files_queued"`
	FilesRemoved int `json:"files_removed"`
}

func (r *Result) merge(o *Result) {
	r.FilesAdded += o.FilesAdded
	r.FilesQueued += o.FilesQueued
	r.FilesRemoved += o.FilesRemoved
}

// Discoverer crawls schema maps for one site at a time. It is safe for
// concurrent use across distinct sites.
type Discoverer struct {
	store  storage.Store
	queue  queue.Queue
	client *http.Client
	logger *slog.Logger
}

// New builds a Discoverer on the given store and queue.
func New(store storage.Store, q queue.Queue, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		store:  store,
		queue:  q,
		client: &http.Client{Timeout: MapFetchTimeout},
		logger: logger,
	}
}

// Site runs a full discovery pass for (siteURL, userID): locate the
// site's schema maps and reconcile each one. Failures on one map are
// logged and do not stop its siblings.
func (d *Discoverer) Site(ctx context.Context, siteURL, userID string) (*Result, error) {
	maps := d.findMaps(ctx, siteURL)
	res := &Result{Maps: len(maps)}
	if len(maps) == 0 {
		d.logger.Info("no schema maps found", "site", siteURL, "user", userID)
		return res, nil
	}
	for _, mapURL := range maps {
		mr, err := d.AddMap(ctx, siteURL, userID, mapURL)
		if err != nil {
			d.logger.Warn("schema map pass failed", "site", siteURL, "map", mapURL, "error", err)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}
		res.merge(mr)
	}
	d.logger.Info("discovery pass complete",
		"site", siteURL, "user", userID, "maps", res.Maps,
		"added", res.FilesAdded, "queued", res.FilesQueued, "removed", res.FilesRemoved)
	return res, nil
}

// AddMap fetches one schema map and reconciles the files it announces,
// creating the site row if needed and queueing a job per change. The
// map URL becomes the canonical schema_map value of every file row it
// announces.
func (d *Discoverer) AddMap(ctx context.Context, siteURL, userID, mapURL string) (*Result, error) {
	res := &Result{Maps: 1}
	if err := d.ensureSite(ctx, siteURL, userID); err != nil {
		return res, err
	}
	entries, err := d.fetchMap(ctx, types.SiteBaseURL(siteURL), mapURL)
	if err != nil {
		return res, err
	}

	diff, err := d.store.DiffSiteFiles(ctx, siteURL, userID, mapURL, entries)
	if err != nil {
		return res, fmt.Errorf("diff site files: %w", err)
	}
	res.FilesAdded = len(diff.Added)
	res.FilesRemoved = len(diff.Removed)

	for _, e := range diff.Added {
		job := types.NewJob(types.JobProcessFile, userID, siteURL, e.FileURL)
		job.SchemaMap = mapURL
		job.ContentType = e.ContentType
		if err := queue.SendJob(ctx, d.queue, job); err != nil {
			d.logger.Error("failed to queue process_file", "file", e.FileURL, "error", err)
			continue
		}
		res.FilesQueued++
	}
	for _, fileURL := range diff.Removed {
		job := types.NewJob(types.JobProcessRemovedFile, userID, siteURL, fileURL)
		if err := queue.SendJob(ctx, d.queue, job); err != nil {
			d.logger.Error("failed to queue process_removed_file", "file", fileURL, "error", err)
		}
	}
	return res, nil
}

func (d *Discoverer) ensureSite(ctx context.Context, siteURL, userID string) error {
	_, err := d.store.GetSite(ctx, siteURL, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get site: %w", err)
	}
	if err := d.store.AddSite(ctx, siteURL, userID, types.DefaultProcessIntervalHours); err != nil {
		return fmt.Errorf("add site: %w", err)
	}
	return nil
}

// findMaps resolves the schema map URLs of a site. Directives found in
// robots.txt win; otherwise the conventional /schema_map.xml location
// is probed, and as a last resort a site URL that itself names a
// schema_map.xml is taken as the map.
func (d *Discoverer) findMaps(ctx context.Context, siteURL string) []string {
	base := types.SiteBaseURL(siteURL)
	if maps := d.robotsMaps(ctx, base); len(maps) > 0 {
		return maps
	}
	direct := base + "/schema_map.xml"
	if d.probe(ctx, direct) {
		return []string{direct}
	}
	if strings.HasSuffix(strings.ToLower(base), "schema_map.xml") && d.probe(ctx, base) {
		return []string{base}
	}
	return nil
}

// robotsMaps collects schemamap directives from the robots.txt at the
// host root. Missing or unreadable robots.txt yields nil.
func (d *Discoverer) robotsMaps(ctx context.Context, base string) []string {
	baseU, err := url.Parse(base)
	if err != nil {
		return nil
	}
	robotsURL := baseU.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	body, status, err := d.get(ctx, robotsURL)
	if err != nil || status != http.StatusOK {
		return nil
	}

	var maps []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if len(line) < len(robotsDirective) || !strings.EqualFold(line[:len(robotsDirective)], robotsDirective) {
			continue
		}
		target := strings.TrimSpace(line[len(robotsDirective):])
		if target == "" {
			continue
		}
		abs := resolveURL(baseU, target)
		if abs == "" || seen[abs] {
			continue
		}
		seen[abs] = true
		maps = append(maps, abs)
	}
	return maps
}

func (d *Discoverer) probe(ctx context.Context, target string) bool {
	_, status, err := d.get(ctx, target)
	return err == nil && status == http.StatusOK
}

func (d *Discoverer) fetchMap(ctx context.Context, base, mapURL string) ([]types.MapEntry, error) {
	body, status, err := d.get(ctx, mapURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", mapURL, status)
	}
	entries, err := parseMap(body, base)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", mapURL, err)
	}
	return entries, nil
}

func (d *Discoverer) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", target, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s: %w", target, err)
	}
	return body, resp.StatusCode, nil
}

// schemaMapURL is one <url> entry. Field tags carry no namespace so
// the same struct matches documents with and without the sitemap 0.9
// namespace.
type schemaMapURL struct {
	Loc         string `xml:"loc"`
	ContentType string `xml:"contentType,attr"`
}

type schemaMapXML struct {
	URLs []schemaMapURL `xml:"url"`
}

// parseMap extracts the payload entries of a schema map document.
// Only <url> elements whose contentType attribute mentions schema.org
// qualify; their loc is resolved against base.
func parseMap(data []byte, base string) ([]types.MapEntry, error) {
	var doc schemaMapXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	var entries []types.MapEntry
	for _, u := range doc.URLs {
		if !strings.Contains(strings.ToLower(u.ContentType), "schema.org") {
			continue
		}
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		abs := resolveURL(baseU, loc)
		if abs == "" {
			continue
		}
		entries = append(entries, types.MapEntry{FileURL: abs, ContentType: u.ContentType})
	}
	return entries, nil
}

func resolveURL(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(r).String()
}
