package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/classifier"
	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/crawler"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/llm"
	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// costPerCall is the rough USDC price of one paid read or write.
const costPerCall = 0.001

// #region reply-job

// ReplyJob answers new replies under the agent's recent posts.
type ReplyJob struct {
	AgentFID   uint64
	Reader     farcaster.Reader
	Poster     farcaster.Poster // nil only in dry runs
	Crawler    *crawler.Crawler
	Classifier *classifier.Classifier
	Composer   *compose.Composer
	Store      state.Store
	Recorder   *logging.Recorder
	Limits     config.Replies

	DryRun       bool
	EagerPersist bool // save after every answered reply instead of once at the end

	now func() time.Time
}

// ReplyStats summarises one run.
type ReplyStats struct {
	Candidates int
	Replied    int
	Reads      int
	Searches   int
}

func (j *ReplyJob) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

// Run executes one reply cycle. It fails fast without a text provider.
func (j *ReplyJob) Run(ctx context.Context) (stats ReplyStats, err error) {
	ctx, span := telemetry.Start(ctx, "job.reply")
	defer func() {
		span.SetAttributes(attribute.Int("reply.replied", stats.Replied))
		telemetry.End(span, err)
	}()

	if !j.Composer.HasGenerator() {
		return stats, fmt.Errorf("%w: %v", config.ErrMissing, llm.ErrNoProvider)
	}

	maxAge := time.Duration(j.Limits.MaxCastAgeHours) * time.Hour
	posts, err := crawler.RecentPosts(ctx, j.Reader, j.AgentFID, j.clock(), maxAge, j.Limits.MaxCastsToCheck)
	if err != nil {
		j.Recorder.Decide(logging.DecisionSkip, fmt.Sprintf("recent posts unavailable: %v", err), nil)
		return stats, nil
	}
	if len(posts) == 0 {
		j.Recorder.Decide(logging.DecisionSkip, fmt.Sprintf("no recent casts found (within %dh)", j.Limits.MaxCastAgeHours), nil)
		return stats, nil
	}

	dedup, err := state.LoadReplies(ctx, j.Store)
	if err != nil {
		return stats, err
	}
	dedup.RunCount++

	cands, cs := j.Crawler.Discover(ctx, posts, dedup.RunCount, dedup)
	stats.Candidates, stats.Reads = len(cands), cs.Reads
	if len(cands) == 0 {
		j.Recorder.Decide(logging.DecisionSkip, "no new replies to respond to", map[string]any{"run": dedup.RunCount, "reads": cs.Reads})
		if !j.DryRun {
			return stats, state.SaveReplies(ctx, j.Store, dedup)
		}
		return stats, nil
	}
	log.Printf("[REPLY] %d new replies to process (max %d per run)", len(cands), j.Limits.MaxRepliesPerRun)

	for _, cand := range crawler.Limit(cands, j.Limits.MaxRepliesPerRun) {
		ok, err := j.answer(ctx, cand, &dedup)
		if err != nil {
			return stats, err
		}
		if ok {
			stats.Replied++
		}
	}
	stats.Searches = j.Classifier.SearchesUsed()

	if !j.DryRun {
		if err := state.SaveReplies(ctx, j.Store, dedup); err != nil {
			return stats, err
		}
	}

	log.Printf("[REPLY] cost: ~%.3f USDC (%d reads + %d posts)", float64(stats.Reads+stats.Replied)*costPerCall, stats.Reads, stats.Replied)
	if stats.Searches > 0 {
		log.Printf("[REPLY] web searches: %d", stats.Searches)
	}
	j.Recorder.Decide(logging.DecisionDone, fmt.Sprintf("replied to %d new replies", stats.Replied), stats)
	return stats, nil
}

// answer classifies, composes and publishes one reply. ok reports whether
// the reply counts as handled; only persistence errors are returned.
func (j *ReplyJob) answer(ctx context.Context, cand crawler.Candidate, dedup *state.ReplyDedupState) (bool, error) {
	author := cand.Author.Handle()
	res := j.Classifier.Classify(ctx, cand)
	log.Printf("[REPLY] [%s] @%s: %q", res.Strategy, author, preview(cand.Text, 80))

	spec := compose.ReplySpec{
		Kind:            res.Strategy,
		OriginalPost:    cand.OriginalPost,
		ReplyText:       cand.Text,
		ReplyAuthor:     author,
		ResearchSummary: res.Research,
		AgentPrevious:   cand.AgentPreviousReply,
	}
	text, ok := j.Composer.Compose(ctx, compose.ReplyPrompt(j.Composer.Persona(), spec))
	if !ok {
		j.Recorder.Decide(logging.DecisionSkip, "could not generate reply to "+cand.Hash, nil)
		return false, nil
	}
	log.Printf("[REPLY]   generated: %q", text)

	if j.DryRun {
		log.Printf("[REPLY]   dry run, would reply to %s", cand.Hash)
		return true, nil
	}

	ours, err := j.Poster.Publish(ctx, text, &farcaster.CastID{FID: cand.Author.FID, Hash: cand.Hash})
	if err != nil {
		j.Recorder.Decide(logging.DecisionAbort, fmt.Sprintf("reply to %s failed: %v", cand.Hash, err), nil)
		return false, nil
	}
	log.Printf("[REPLY]   posted %s", ours)

	dedup.Replied[cand.Hash] = state.ReplyRecord{
		At:           j.clock().UTC(),
		Author:       author,
		Response:     text,
		OurReplyHash: ours,
		IsThread:     cand.IsThread,
		Researched:   res.Research != "",
	}
	if j.EagerPersist {
		if err := state.SaveReplies(ctx, j.Store, *dedup); err != nil {
			return true, err
		}
	}
	return true, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// #endregion reply-job
