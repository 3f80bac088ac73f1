// Package classifier picks a response strategy for a reply and, for builder
// replies, gathers web research within a per-run search budget.
package classifier

import (
	"context"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/crawler"
	"github.com/danielpatrickdp/buildstreak-agent/internal/retry"
	"github.com/danielpatrickdp/buildstreak-agent/internal/websearch"
)

// #region signals

var signals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(built|shipped|launched|deployed|released|created|made|developing|working on|building)\b`),
	regexp.MustCompile(`(?i)\b(app|dapp|tool|project|product|contract|protocol|bot|site|platform|marketplace|wallet|game|nft|miniapp|mini-app)\b`),
	regexp.MustCompile(`(?i)\bhttps?://`),
	regexp.MustCompile(`(?i)\b(github\.com|vercel\.app|netlify\.app|\.xyz|\.io|baseapp)\b`),
	regexp.MustCompile(`(?i)\b(check it out|take a look|feedback|what do you think|here it is|link here)\b`),
}

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// BuilderThreshold is the number of matching signals that marks a builder reply.
const BuilderThreshold = 2

// Signals counts how many of the five builder signals match text.
func Signals(text string) int {
	n := 0
	for _, re := range signals {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// IsBuilder reports whether text reads like someone sharing a build.
func IsBuilder(text string) bool {
	return Signals(text) >= BuilderThreshold
}

// #endregion signals

// #region query

// ResearchQuery builds the search query for a builder reply: the first URL's
// host and path words when there is one, otherwise the author and the
// leading text.
func ResearchQuery(text, author string) string {
	lead := firstRunes(text, 80)
	m := urlPattern.FindString(text)
	if m == "" {
		return author + " " + lead + " Base blockchain"
	}
	u, err := url.Parse(m)
	if err != nil || u.Hostname() == "" {
		return author + " " + lead + " Base"
	}
	return strings.TrimSpace(u.Hostname() + " " + strings.ReplaceAll(u.EscapedPath(), "/", " "))
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// #endregion query

// #region classify

// SummaryLimit bounds the research summary handed to the composer.
const SummaryLimit = 500

// SearchCount is how many results a research query asks for.
const SearchCount = 3

// Result is the chosen strategy. Research is set only for researched builders.
type Result struct {
	Strategy compose.Kind
	Builder  bool
	Searched bool
	Research string
}

// Classifier holds the per-run search budget. It is not safe for concurrent use.
type Classifier struct {
	search      websearch.Searcher
	maxSearches int
	delay       time.Duration
	sleep       func(context.Context, time.Duration) error
	used        int
}

// New creates a Classifier. A nil searcher disables research.
func New(search websearch.Searcher, maxSearches int, delay time.Duration) *Classifier {
	return &Classifier{search: search, maxSearches: maxSearches, delay: delay, sleep: retry.Sleep}
}

// SearchesUsed returns how many searches this run attempted.
func (c *Classifier) SearchesUsed() int { return c.used }

// Classify chooses the strategy for one candidate. A search consumes budget
// whether or not it returns anything.
func (c *Classifier) Classify(ctx context.Context, cand crawler.Candidate) Result {
	if cand.IsThread {
		return Result{Strategy: compose.KindThread}
	}
	if !IsBuilder(cand.Text) {
		return Result{Strategy: compose.KindCasual}
	}

	res := Result{Strategy: compose.KindBuilder, Builder: true}
	if c.search == nil || c.used >= c.maxSearches {
		return res
	}

	c.used++
	res.Searched = true
	summary := c.research(ctx, cand)
	if summary != "" {
		res.Strategy = compose.KindResearched
		res.Research = summary
	}
	return res
}

func (c *Classifier) research(ctx context.Context, cand crawler.Candidate) string {
	query := ResearchQuery(cand.Text, cand.Author.Handle())
	if err := c.sleep(ctx, c.delay); err != nil {
		return ""
	}
	results, err := c.search.Search(ctx, query, SearchCount)
	if err != nil {
		log.Printf("[CLASSIFY] web search failed: %v", err)
		return ""
	}
	if len(results) == 0 {
		log.Printf("[CLASSIFY] no research results for %q", query)
		return ""
	}
	return websearch.Summarize(results, SummaryLimit)
}

// #endregion classify
