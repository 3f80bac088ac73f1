package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/websearch"
)

// #region fakes

type mockSearcher struct {
	results map[string][]websearch.Result
	fail    map[string]bool
	counts  []int
}

func (m *mockSearcher) Search(_ context.Context, query string, count int) ([]websearch.Result, error) {
	m.counts = append(m.counts, count)
	if m.fail[query] {
		return nil, errors.New("status 429")
	}
	return m.results[query], nil
}

type mockSparker struct {
	got []compose.SparkItem
}

func (m *mockSparker) Sparks(_ context.Context, items []compose.SparkItem) []string {
	m.got = items
	return []string{"ship the small thing"}
}

// #endregion fakes

var runAt = time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)

func newTestDiscoverer(cfg Config, s *mockSearcher, sp *mockSparker, store state.Store) (*Discoverer, *[]time.Duration) {
	d := New(cfg, s, sp, store, time.UTC)
	d.now = func() time.Time { return runAt }
	var slept []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return nil
	}
	return d, &slept
}

func hits(prefix string, n int) []websearch.Result {
	out := make([]websearch.Result, n)
	for i := range out {
		out[i] = websearch.Result{Title: prefix + string(rune('a'+i)), URL: "https://x.io/" + prefix, Description: "d"}
	}
	return out
}

func TestRunBuildsSnapshot(t *testing.T) {
	s := &mockSearcher{results: map[string][]websearch.Result{
		"q1": hits("one-", 5),
		"q2": hits("two-", 1),
	}}
	sp := &mockSparker{}
	store := state.NewMemStore()
	cfg := Config{Queries: []string{"q1", "q2"}, Delay: 1500 * time.Millisecond}
	d, slept := newTestDiscoverer(cfg, s, sp, store)

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Snapshot.Items) != 3 {
		t.Fatalf("expected 2+1 items, got %d", len(res.Snapshot.Items))
	}
	if res.Snapshot.Items[1].Title != "one-b" || res.Snapshot.Items[2].Title != "two-a" {
		t.Fatalf("unexpected items: %+v", res.Snapshot.Items)
	}
	for _, c := range s.counts {
		if c != SearchCount {
			t.Errorf("requested %d results, want %d", c, SearchCount)
		}
	}
	if len(*slept) != 2 || (*slept)[0] != 1500*time.Millisecond {
		t.Errorf("expected a pause after each query, got %v", *slept)
	}
	if len(sp.got) != 3 {
		t.Errorf("sparker saw %d items", len(sp.got))
	}

	snap, _ := state.LoadDiscovery(context.Background(), store)
	if snap.Date != "2026-03-04" || len(snap.Sparks) != 1 || !snap.UpdatedAt.Equal(runAt) {
		t.Fatalf("stored snapshot: %+v", snap)
	}
}

func TestRunSkipsFailedQuery(t *testing.T) {
	s := &mockSearcher{
		results: map[string][]websearch.Result{"ok": hits("ok-", 2)},
		fail:    map[string]bool{"bad": true},
	}
	d, _ := newTestDiscoverer(Config{Queries: []string{"bad", "ok"}}, s, &mockSparker{}, state.NewMemStore())

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || len(res.Snapshot.Items) != 2 {
		t.Fatalf("got %+v", res)
	}
}

func TestRunKeepsPreviousSnapshotWhenEmpty(t *testing.T) {
	store := state.NewMemStore()
	prev := state.DiscoverySnapshot{Date: "2026-03-03", Sparks: []string{"old"}}
	state.SaveDiscovery(context.Background(), store, prev)

	s := &mockSearcher{fail: map[string]bool{"q": true}}
	d, _ := newTestDiscoverer(Config{Queries: []string{"q"}}, s, &mockSparker{}, store)

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Kept {
		t.Fatal("expected previous snapshot kept")
	}
	if store.Puts[state.KeyDiscovery] != 1 {
		t.Fatalf("snapshot overwritten: %d puts", store.Puts[state.KeyDiscovery])
	}
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	store := state.NewMemStore()
	s := &mockSearcher{results: map[string][]websearch.Result{"q": hits("x", 2)}}
	dir := t.TempDir()
	cfg := Config{Queries: []string{"q"}, DryRun: true, MarkdownPath: filepath.Join(dir, "DISCOVERY.md")}
	d, _ := newTestDiscoverer(cfg, s, &mockSparker{}, store)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.Puts[state.KeyDiscovery] != 0 {
		t.Fatal("dry run wrote the snapshot")
	}
	if _, err := os.Stat(cfg.MarkdownPath); !os.IsNotExist(err) {
		t.Fatal("dry run wrote the note")
	}
}

func TestRunWritesMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory", "DISCOVERY.md")
	s := &mockSearcher{results: map[string][]websearch.Result{"q": hits("t", 1)}}
	d, _ := newTestDiscoverer(Config{Queries: []string{"q"}, MarkdownPath: path}, s, &mockSparker{}, state.NewMemStore())

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	want := strings.Join([]string{
		"# Discovery 2026-03-04",
		"",
		"Sparks:",
		"- ship the small thing",
		"",
		"Sources:",
		"- ta (https://x.io/t)",
	}, "\n")
	if string(body) != want {
		t.Fatalf("note:\n%s\nwant:\n%s", body, want)
	}
}

func TestSparksFor(t *testing.T) {
	s := state.DiscoverySnapshot{Date: "2026-03-04", Sparks: []string{"a"}}
	if got := SparksFor(s, "2026-03-04"); len(got) != 1 {
		t.Errorf("same day: %v", got)
	}
	if got := SparksFor(s, "2026-03-05"); got != nil {
		t.Errorf("stale snapshot should be ignored: %v", got)
	}
}
