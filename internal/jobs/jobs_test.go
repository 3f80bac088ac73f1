package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/cadence"
	"github.com/danielpatrickdp/buildstreak-agent/internal/classifier"
	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/crawler"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/llm"
	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/reward"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

const agentFID = 100

// #region fakes

type mockGenerator struct {
	text     string
	requests []llm.Request
}

func (m *mockGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	return m.text, nil
}

type mockReader struct {
	posts  []farcaster.Cast
	convos map[string]*farcaster.Cast
}

func (m *mockReader) FetchRecentPosts(context.Context, uint64, int) ([]farcaster.Cast, error) {
	return m.posts, nil
}

func (m *mockReader) FetchConversation(_ context.Context, hash string, _ int) (*farcaster.Cast, error) {
	c, ok := m.convos[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

type mockPoster struct {
	texts   []string
	parents []*farcaster.CastID
	err     error
}

func (m *mockPoster) Publish(_ context.Context, text string, parent *farcaster.CastID) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.texts = append(m.texts, text)
	m.parents = append(m.parents, parent)
	return "0xours" + string(rune('0'+len(m.texts))), nil
}

// #endregion fakes

// #region post-job-tests

var noon = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func newPostJob(gen llm.Generator, poster farcaster.Poster, store state.Store, at time.Time) *PostJob {
	p := config.DefaultPersona()
	j := &PostJob{
		Engine:   cadence.NewEngine(cadence.DefaultConfig(), time.UTC, func() float64 { return 0 }),
		Composer: compose.New(gen, p),
		Poster:   poster,
		Store:    store,
		Pools:    cadence.Pools{Moods: p.Moods, Energy: p.Energy, Themes: p.Themes},
	}
	j.now = func() time.Time { return at }
	j.roll = func() float64 { return 0.99 }
	return j
}

func TestPostJobPublishesAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	store, err := state.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	gen := &mockGenerator{text: "GM builders. What tiny thing are you shipping before lunch?"}
	poster := &mockPoster{}
	j := newPostJob(gen, poster, store, noon)
	j.Recorder = logging.NewRecorder(store.DB(), "post")

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(poster.texts) != 1 || poster.parents[0] != nil {
		t.Fatalf("expected one top-level post, got %+v", poster.parents)
	}

	cs, _ := state.LoadCadence(context.Background(), store)
	if cs.LastHash != "0xours1" || cs.PostsByDate["2026-03-04"] != 1 || !cs.LastPostAt.Equal(noon) {
		t.Fatalf("cadence not recorded: %+v", cs)
	}
	if len(cs.RecentPrompts) != 1 || cs.RecentPrompts[0] != gen.text {
		t.Fatalf("recent prompts: %v", cs.RecentPrompts)
	}

	entries, err := logging.Recent(store.DB(), 5)
	if err != nil || len(entries) != 1 || entries[0].Decision != logging.DecisionAct {
		t.Fatalf("decision log: %+v err=%v", entries, err)
	}
}

func TestPostJobSkipsQuietHours(t *testing.T) {
	store := state.NewMemStore()
	gen := &mockGenerator{text: "late night shipping"}
	poster := &mockPoster{}
	j := newPostJob(gen, poster, store, time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC))

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gen.requests) != 0 || len(poster.texts) != 0 {
		t.Fatal("quiet hours must not compose or publish")
	}
	if store.Puts[state.KeyCadence] != 0 {
		t.Fatal("skip must not write state")
	}
}

func TestPostJobForceBypassesGates(t *testing.T) {
	store := state.NewMemStore()
	poster := &mockPoster{}
	j := newPostJob(&mockGenerator{text: "Forced check-in: what shipped?"}, poster, store, time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC))
	j.Force = true

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(poster.texts) != 1 {
		t.Fatal("force should publish during quiet hours")
	}
}

func TestPostJobDryRun(t *testing.T) {
	store := state.NewMemStore()
	gen := &mockGenerator{text: "Dry run check-in"}
	j := newPostJob(gen, nil, store, noon)
	j.DryRun = true

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gen.requests) == 0 {
		t.Fatal("dry run should still compose")
	}
	if store.Puts[state.KeyCadence] != 0 {
		t.Fatal("dry run must not write state")
	}
}

func TestPostJobNoProvider(t *testing.T) {
	store := state.NewMemStore()
	poster := &mockPoster{}
	j := newPostJob(nil, poster, store, noon)

	err := j.Run(context.Background())
	if !errors.Is(err, llm.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if len(poster.texts) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestPostJobComposeFailureSkips(t *testing.T) {
	store := state.NewMemStore()
	poster := &mockPoster{}
	gen := &mockGenerator{text: strings.Repeat("too long ", 60)}
	j := newPostJob(gen, poster, store, noon)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("a null compose result is not an error: %v", err)
	}
	if len(gen.requests) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(gen.requests))
	}
	if len(poster.texts) != 0 || store.Puts[state.KeyCadence] != 0 {
		t.Fatal("nothing should be published or written")
	}
}

func TestPostJobUsesTodaysSparks(t *testing.T) {
	store := state.NewMemStore()
	state.SaveDiscovery(context.Background(), store, state.DiscoverySnapshot{Date: "2026-03-04", Sparks: []string{"onchain summer"}})
	gen := &mockGenerator{text: "Who is building for onchain summer?"}
	j := newPostJob(gen, &mockPoster{}, store, noon)

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.requests[0].User, "onchain summer") {
		t.Fatalf("sparks missing from prompt: %s", gen.requests[0].User)
	}

	// A stale snapshot is ignored.
	store = state.NewMemStore()
	state.SaveDiscovery(context.Background(), store, state.DiscoverySnapshot{Date: "2026-03-03", Sparks: []string{"yesterday news"}})
	gen = &mockGenerator{text: "Fresh check-in for today"}
	j = newPostJob(gen, &mockPoster{}, store, noon)
	j.Run(context.Background())
	if strings.Contains(gen.requests[0].User, "yesterday news") {
		t.Fatal("stale sparks should not be used")
	}
}

// #endregion post-job-tests

// #region reply-job-tests

func replyFixture(now time.Time) *mockReader {
	return &mockReader{
		posts: []farcaster.Cast{{Hash: "0xpost", Text: "What are you shipping?", Timestamp: now.Add(-time.Hour)}},
		convos: map[string]*farcaster.Cast{
			"0xpost": {
				Hash: "0xpost", Text: "What are you shipping?", Author: farcaster.Author{FID: agentFID},
				DirectReplies: []farcaster.Cast{
					{Hash: "0xabc", Text: "gm, just vibing today", Author: farcaster.Author{FID: 7, Username: "amina"}},
				},
			},
		},
	}
}

func newReplyJob(gen llm.Generator, reader farcaster.Reader, poster farcaster.Poster, store state.Store, now time.Time) *ReplyJob {
	j := &ReplyJob{
		AgentFID:   agentFID,
		Reader:     reader,
		Poster:     poster,
		Crawler:    crawler.New(reader, agentFID, 3),
		Classifier: classifier.New(nil, 0, 0),
		Composer:   compose.New(gen, config.DefaultPersona()),
		Store:      store,
		Limits:     config.Replies{MaxRepliesPerRun: 5, MaxCastsToCheck: 5, MaxCastAgeHours: 72, MaxThreadDepth: 3},
	}
	j.now = func() time.Time { return now }
	return j
}

func TestReplyJobDedupAcrossRuns(t *testing.T) {
	store := state.NewMemStore()
	reader := replyFixture(noon)
	gen := &mockGenerator{text: "Vibing is valid. What's next on the list?"}
	poster := &mockPoster{}

	stats, err := newReplyJob(gen, reader, poster, store, noon).Run(context.Background())
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if stats.Replied != 1 {
		t.Fatalf("run 1 replied %d", stats.Replied)
	}
	if p := poster.parents[0]; p == nil || p.Hash != "0xabc" || p.FID != 7 {
		t.Fatalf("reply parent: %+v", p)
	}

	dedup, _ := state.LoadReplies(context.Background(), store)
	rec, ok := dedup.Replied["0xabc"]
	if !ok || rec.Author != "amina" || rec.OurReplyHash != "0xours1" || rec.IsThread || rec.Researched {
		t.Fatalf("record: %+v", rec)
	}

	stats, err = newReplyJob(gen, reader, poster, store, noon.Add(time.Hour)).Run(context.Background())
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if stats.Candidates != 0 || len(poster.texts) != 1 {
		t.Fatalf("run 2 should find nothing new: %+v, posts=%d", stats, len(poster.texts))
	}
	dedup, _ = state.LoadReplies(context.Background(), store)
	if dedup.RunCount != 2 || len(dedup.Replied) != 1 {
		t.Fatalf("dedup after run 2: %+v", dedup)
	}
}

func TestReplyJobNoRecentCasts(t *testing.T) {
	store := state.NewMemStore()
	reader := replyFixture(noon)
	reader.posts[0].Timestamp = noon.Add(-100 * time.Hour)

	stats, err := newReplyJob(&mockGenerator{text: "x"}, reader, &mockPoster{}, store, noon).Run(context.Background())
	if err != nil || stats.Candidates != 0 {
		t.Fatalf("stats=%+v err=%v", stats, err)
	}
	if store.Puts[state.KeyReplies] != 0 {
		t.Fatal("runCount must not advance without recent casts")
	}
}

func TestReplyJobDryRun(t *testing.T) {
	store := state.NewMemStore()
	poster := &mockPoster{}
	j := newReplyJob(&mockGenerator{text: "Love the energy!"}, replyFixture(noon), poster, store, noon)
	j.DryRun = true

	stats, err := j.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Replied != 1 || len(poster.texts) != 0 || store.Puts[state.KeyReplies] != 0 {
		t.Fatalf("dry run: stats=%+v posts=%d puts=%d", stats, len(poster.texts), store.Puts[state.KeyReplies])
	}
}

func TestReplyJobRequiresProvider(t *testing.T) {
	j := newReplyJob(nil, replyFixture(noon), &mockPoster{}, state.NewMemStore(), noon)
	if _, err := j.Run(context.Background()); !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReplyJobPublishFailureNotRecorded(t *testing.T) {
	store := state.NewMemStore()
	j := newReplyJob(&mockGenerator{text: "Nice one!"}, replyFixture(noon), &mockPoster{err: errors.New("hub 503")}, store, noon)

	stats, err := j.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	dedup, _ := state.LoadReplies(context.Background(), store)
	if stats.Replied != 0 || dedup.HasReplied("0xabc") {
		t.Fatal("a failed publish must leave the reply for the next run")
	}
	if dedup.RunCount != 1 {
		t.Fatalf("runCount: %d", dedup.RunCount)
	}
}

func TestReplyJobThreadedReply(t *testing.T) {
	store := state.NewMemStore()
	reader := replyFixture(noon)
	reader.convos["0xpost"].DirectReplies = []farcaster.Cast{{
		Hash: "0xours0", Text: "Tell me more!", Author: farcaster.Author{FID: agentFID},
		DirectReplies: []farcaster.Cast{
			{Hash: "0xdeep", Text: "It is a tipping bot", Author: farcaster.Author{FID: 9, Username: "kip"}},
		},
	}}
	gen := &mockGenerator{text: "A tipping bot on Base? Which chain events does it watch?"}
	poster := &mockPoster{}
	j := newReplyJob(gen, reader, poster, store, noon)
	j.EagerPersist = true

	if _, err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.requests[0].User, "Tell me more!") {
		t.Fatalf("thread prompt should carry the previous agent reply: %s", gen.requests[0].User)
	}
	dedup, _ := state.LoadReplies(context.Background(), store)
	if !dedup.Replied["0xdeep"].IsThread {
		t.Fatal("threaded reply should be recorded as thread")
	}
	if store.Puts[state.KeyReplies] != 2 {
		t.Fatalf("eager persistence should save per reply and at the end, got %d", store.Puts[state.KeyReplies])
	}
}

// #endregion reply-job-tests

// #region tip-job-tests

func TestTipJobSkipsWithoutPost(t *testing.T) {
	store := state.NewMemStore()
	d := reward.New(reward.Config{AgentFID: agentFID, MinAge: 2 * time.Hour}, nil, &mockReader{}, nil, nil, store)
	out, err := (&TipJob{Distributor: d, Store: store}).Run(context.Background())
	if err != nil || out.Status != reward.StatusSkipped {
		t.Fatalf("got %+v err=%v", out, err)
	}
}

func TestTipJobSkipsYoungPost(t *testing.T) {
	store := state.NewMemStore()
	state.SaveCadence(context.Background(), store, state.CadenceState{LastHash: "0xpost", LastPostAt: time.Now().Add(-time.Hour)})
	d := reward.New(reward.Config{AgentFID: agentFID, MinAge: 2 * time.Hour}, nil, &mockReader{}, nil, nil, store)

	out, err := (&TipJob{Distributor: d, Store: store}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != reward.StatusSkipped || !strings.Contains(out.Reason, "too recent") {
		t.Fatalf("got %+v", out)
	}
	if store.Puts[state.KeyTips] != 0 {
		t.Fatal("ledger must not be written")
	}
}

func TestTipDecision(t *testing.T) {
	tests := []struct {
		in   reward.Status
		want string
	}{
		{reward.StatusTipped, logging.DecisionAct},
		{reward.StatusPartial, logging.DecisionAbort},
		{reward.StatusAborted, logging.DecisionAbort},
		{reward.StatusSkipped, logging.DecisionSkip},
		{reward.StatusDryRun, logging.DecisionSkip},
	}
	for _, tt := range tests {
		if got := tipDecision(tt.in); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.in, got, tt.want)
		}
	}
}

// #endregion tip-job-tests
