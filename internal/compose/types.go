package compose

// #region kind
// Kind selects the length cap, trimming rule and novelty check of a prompt.
type Kind string

const (
	KindPost       Kind = "post"
	KindThread     Kind = "thread"
	KindResearched Kind = "researched_builder"
	KindBuilder    Kind = "builder"
	KindCasual     Kind = "casual"
	KindTip        Kind = "tip"
)

// Tolerance is the longest over-cap reply that is trimmed instead of rejected.
// It is also the byte limit of a single cast.
const Tolerance = 320

var caps = map[Kind]int{
	KindPost:       240,
	KindThread:     200,
	KindResearched: 320,
	KindBuilder:    200,
	KindCasual:     140,
	KindTip:        140,
}

// Cap returns the character cap for k.
func Cap(k Kind) int {
	return caps[k]
}

// trims reports whether over-cap candidates of kind k are trimmed.
func trims(k Kind) bool {
	switch k {
	case KindThread, KindResearched, KindBuilder, KindCasual:
		return true
	}
	return false
}

// #endregion kind

// #region prompt
// Prompt is one composition request. Recent is only consulted for posts.
type Prompt struct {
	Kind        Kind
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Recent      []string
}

// PostSpec describes a check-in post.
type PostSpec struct {
	Slot       string
	Mood       string
	Energy     int
	Theme      string
	Surprise   bool
	StreakDays int
	Sparks     []string
	Recent     []string
}

// ReplySpec describes a reply to someone in a conversation.
type ReplySpec struct {
	Kind            Kind
	OriginalPost    string
	ReplyText       string
	ReplyAuthor     string
	ResearchSummary string
	AgentPrevious   string
}

// SparkItem is one discovery hit fed to the sparks prompt.
type SparkItem struct {
	Title       string
	Description string
}

// #endregion prompt
