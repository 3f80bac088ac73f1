// Package discovery builds the daily snapshot of external items and the
// inspiration sparks the post flow writes from.
package discovery

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/cadence"
	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/retry"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
	"github.com/danielpatrickdp/buildstreak-agent/internal/websearch"
)

// #region constants

const (
	// SearchCount is the number of hits requested per query.
	SearchCount = 5
	// PerQuery is how many hits of each query are kept.
	PerQuery = 2
)

// #endregion constants

// #region types

// Sparker turns discovery items into short inspiration lines.
type Sparker interface {
	Sparks(ctx context.Context, items []compose.SparkItem) []string
}

// Config holds the discovery knobs.
type Config struct {
	Queries      []string
	Delay        time.Duration // pause after each search
	MarkdownPath string        // optional note; empty disables it
	DryRun       bool
}

// Result reports one run. Kept is true when nothing was found and the
// previous snapshot was left in place.
type Result struct {
	Snapshot state.DiscoverySnapshot
	Failed   int
	Kept     bool
}

// Discoverer runs the daily discovery job.
type Discoverer struct {
	cfg    Config
	search websearch.Searcher
	sparks Sparker
	store  state.Store
	loc    *time.Location
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// New creates a Discoverer. loc decides the snapshot date.
func New(cfg Config, search websearch.Searcher, sparks Sparker, store state.Store, loc *time.Location) *Discoverer {
	if loc == nil {
		loc = time.Local
	}
	return &Discoverer{cfg: cfg, search: search, sparks: sparks, store: store, loc: loc, now: time.Now, sleep: retry.Sleep}
}

// #endregion types

// #region run

// Run searches every query, derives sparks and overwrites the snapshot. A
// failed query is skipped. When no query returns anything the stored
// snapshot is kept.
func (d *Discoverer) Run(ctx context.Context) (res Result, err error) {
	ctx, span := telemetry.Start(ctx, "discovery.run", attribute.Int("discovery.queries", len(d.cfg.Queries)))
	defer func() {
		span.SetAttributes(attribute.Int("discovery.items", len(res.Snapshot.Items)))
		telemetry.End(span, err)
	}()

	var items []state.DiscoveryItem
	for _, q := range d.cfg.Queries {
		results, err := d.search.Search(ctx, q, SearchCount)
		if serr := d.sleep(ctx, d.cfg.Delay); serr != nil {
			return Result{}, serr
		}
		if err != nil {
			log.Printf("[DISCOVER] query %q failed: %v", q, err)
			res.Failed++
			continue
		}
		if len(results) > PerQuery {
			results = results[:PerQuery]
		}
		for _, r := range results {
			items = append(items, state.DiscoveryItem{Title: r.Title, URL: r.URL, Description: r.Description})
		}
	}

	if len(items) == 0 {
		log.Printf("[DISCOVER] no items found (%d queries failed), keeping previous snapshot", res.Failed)
		res.Kept = true
		return res, nil
	}

	sparkItems := make([]compose.SparkItem, len(items))
	for i, it := range items {
		sparkItems[i] = compose.SparkItem{Title: it.Title, Description: it.Description}
	}

	now := d.now()
	res.Snapshot = state.DiscoverySnapshot{
		Date:      cadence.DateKey(now.In(d.loc)),
		UpdatedAt: now.UTC(),
		Sparks:    d.sparks.Sparks(ctx, sparkItems),
		Items:     items,
	}
	log.Printf("[DISCOVER] %d items, %d sparks for %s", len(items), len(res.Snapshot.Sparks), res.Snapshot.Date)

	if d.cfg.DryRun {
		return res, nil
	}
	if err := state.SaveDiscovery(ctx, d.store, res.Snapshot); err != nil {
		return Result{}, fmt.Errorf("save discovery: %w", err)
	}
	if d.cfg.MarkdownPath != "" {
		if err := WriteMarkdown(d.cfg.MarkdownPath, res.Snapshot); err != nil {
			return res, err
		}
	}
	return res, nil
}

// #endregion run

// #region markdown

// Markdown renders the human-readable note for a snapshot.
func Markdown(s state.DiscoverySnapshot) string {
	lines := []string{"# Discovery " + s.Date, "", "Sparks:"}
	for _, sp := range s.Sparks {
		lines = append(lines, "- "+sp)
	}
	lines = append(lines, "", "Sources:")
	for _, it := range s.Items {
		lines = append(lines, fmt.Sprintf("- %s (%s)", it.Title, it.URL))
	}
	return strings.Join(lines, "\n")
}

// WriteMarkdown overwrites the note at path, creating parent directories.
func WriteMarkdown(path string, s state.DiscoverySnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create note dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(Markdown(s)), 0o644); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

// #endregion markdown

// #region consume

// SparksFor returns the snapshot's sparks only when it was built today.
func SparksFor(s state.DiscoverySnapshot, today string) []string {
	if s.Date != today {
		return nil
	}
	return s.Sparks
}

// #endregion consume
