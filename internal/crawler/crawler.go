// Package crawler finds reply nodes the agent has not answered yet across its
// recent posts, bounding how many conversation reads one run makes.
package crawler

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region types

// FetchDepth is how many reply levels are requested per conversation.
const FetchDepth = 2

// FeedLimit is how many recent posts are requested from the feed.
const FeedLimit = 10

// Candidate is one reply that may be answered this run.
type Candidate struct {
	Hash               string
	Text               string
	Author             farcaster.Author
	OriginalPost       string
	IsThread           bool
	AgentPreviousReply string
	ThreadDepth        int
	SourcePost         string
}

// Stats counts the work done by one Discover call.
type Stats struct {
	Checked  int // posts selected by the tiered schedule
	Reads    int // conversation fetches attempted
	Failed   int
	Direct   int
	Threaded int
}

// #endregion types

// #region recent

// RecentPosts returns the agent's posts younger than maxAge, newest first,
// capped at maxCount.
func RecentPosts(ctx context.Context, r farcaster.Reader, fid uint64, now time.Time, maxAge time.Duration, maxCount int) ([]farcaster.Cast, error) {
	casts, err := r.FetchRecentPosts(ctx, fid, FeedLimit)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-maxAge)
	var out []farcaster.Cast
	for _, c := range casts {
		if !c.Timestamp.After(cutoff) {
			continue
		}
		out = append(out, c)
		if maxCount > 0 && len(out) == maxCount {
			break
		}
	}
	return out, nil
}

// SelectTiered picks which posts to query this run. The first run checks
// everything; afterwards the newest is checked every run, the second on even
// runs and the rest every fourth run.
func SelectTiered(posts []farcaster.Cast, runCount int) []farcaster.Cast {
	var out []farcaster.Cast
	for i, p := range posts {
		switch {
		case runCount <= 1, i == 0:
		case i == 1 && runCount%2 == 0:
		case i >= 2 && runCount%4 == 0:
		default:
			continue
		}
		out = append(out, p)
	}
	return out
}

// #endregion recent

// #region crawler

// Crawler walks conversation trees for one agent account.
type Crawler struct {
	reader         farcaster.Reader
	agentFID       uint64
	maxThreadDepth int
}

// New creates a Crawler.
func New(reader farcaster.Reader, agentFID uint64, maxThreadDepth int) *Crawler {
	return &Crawler{reader: reader, agentFID: agentFID, maxThreadDepth: maxThreadDepth}
}

// Discover returns unanswered replies for the tiered selection of posts:
// each post's direct replies in source order, then its threaded replies.
// A post whose conversation cannot be fetched is skipped.
func (c *Crawler) Discover(ctx context.Context, posts []farcaster.Cast, runCount int, dedup state.ReplyDedupState) ([]Candidate, Stats) {
	ctx, span := telemetry.Start(ctx, "crawler.discover", attribute.Int("crawler.run", runCount))
	defer span.End()

	selected := SelectTiered(posts, runCount)
	stats := Stats{Checked: len(selected)}
	log.Printf("[CRAWL] run #%d: checking %d of %d recent posts", runCount, len(selected), len(posts))

	seen := make(map[string]bool)
	var out []Candidate
	for _, post := range selected {
		stats.Reads++
		root, err := c.reader.FetchConversation(ctx, post.Hash, FetchDepth)
		if err != nil {
			stats.Failed++
			log.Printf("[CRAWL] skip %s: %v", post.Hash, err)
			continue
		}
		original := root.Text
		if original == "" {
			original = post.Text
		}
		direct, threaded := Extract(root, c.agentFID, c.maxThreadDepth, dedup, seen)
		for i := range direct {
			direct[i].OriginalPost, direct[i].SourcePost = original, post.Hash
		}
		for i := range threaded {
			threaded[i].OriginalPost, threaded[i].SourcePost = original, post.Hash
		}
		if len(root.DirectReplies) > 0 {
			log.Printf("[CRAWL] %s: %d direct replies, %d new direct, %d new threaded",
				post.Hash, len(root.DirectReplies), len(direct), len(threaded))
		}
		stats.Direct += len(direct)
		stats.Threaded += len(threaded)
		out = append(append(out, direct...), threaded...)
	}
	span.SetAttributes(attribute.Int("crawler.candidates", len(out)))
	return out, stats
}

// #endregion crawler

// #region extract

type frame struct {
	node  *farcaster.Cast
	depth int
}

// Extract walks one conversation tree. Direct replies are the root's
// children not authored by the agent. Threaded replies are the non-agent
// children of agent-authored replies whose depth stays within maxThreadDepth;
// ThreadDepth is the depth of the agent reply they answer. The walk never
// descends below FetchDepth. seen is shared across trees so no node is
// emitted twice in one run.
func Extract(root *farcaster.Cast, agentFID uint64, maxThreadDepth int, dedup state.ReplyDedupState, seen map[string]bool) (direct, threaded []Candidate) {
	if root == nil {
		return nil, nil
	}
	fresh := func(n *farcaster.Cast) bool {
		return n.Author.FID != agentFID && !dedup.HasReplied(n.Hash) && !seen[n.Hash]
	}

	for i := range root.DirectReplies {
		r := &root.DirectReplies[i]
		if !fresh(r) {
			continue
		}
		seen[r.Hash] = true
		direct = append(direct, Candidate{Hash: r.Hash, Text: r.Text, Author: r.Author})
	}

	stack := []frame{{node: root, depth: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > 0 && f.node.Author.FID == agentFID && f.depth < FetchDepth {
			for i := range f.node.DirectReplies {
				sub := &f.node.DirectReplies[i]
				if f.depth > maxThreadDepth || !fresh(sub) {
					continue
				}
				seen[sub.Hash] = true
				threaded = append(threaded, Candidate{
					Hash:               sub.Hash,
					Text:               sub.Text,
					Author:             sub.Author,
					IsThread:           true,
					AgentPreviousReply: f.node.Text,
					ThreadDepth:        f.depth,
				})
			}
		}

		if f.depth+1 > FetchDepth {
			continue
		}
		for i := len(f.node.DirectReplies) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &f.node.DirectReplies[i], depth: f.depth + 1})
		}
	}
	return direct, threaded
}

// Limit keeps the first n candidates; n <= 0 keeps none.
func Limit(cands []Candidate, n int) []Candidate {
	if n <= 0 {
		return nil
	}
	if len(cands) > n {
		return cands[:n]
	}
	return cands
}

// #endregion extract
