package state

import "time"

// #region keys

// Document keys. Each job owns one document.
const (
	KeyCadence   = "daily_prompt"
	KeyDiscovery = "discovery"
	KeyReplies   = "replies"
	KeyTips      = "tips"
)

const (
	MaxRecentPrompts = 8
	MaxRecentCasts   = 10
)

// #endregion keys

// #region cadence-state

// CadenceState is the posting history the cadence engine decides from.
type CadenceState struct {
	LastDateKey      string         `json:"lastDateKey,omitempty"`
	StreakDays       int            `json:"streakDays"`
	PostsByDate      map[string]int `json:"postsByDate"`
	LastPostAt       time.Time      `json:"lastPostAt,omitzero"`
	LastHash         string         `json:"lastHash,omitempty"`
	RecentPrompts    []string       `json:"recentPrompts"`
	RecentCasts      []RecentCast   `json:"recentCasts"`
	LastSurpriseDate string         `json:"lastSurpriseDate,omitempty"`
}

// RecentCast is one published post kept for context.
type RecentCast struct {
	Hash     string    `json:"hash"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"postedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c CadenceState) Clone() CadenceState {
	out := c
	out.PostsByDate = make(map[string]int, len(c.PostsByDate))
	for k, v := range c.PostsByDate {
		out.PostsByDate[k] = v
	}
	out.RecentPrompts = append([]string(nil), c.RecentPrompts...)
	out.RecentCasts = append([]RecentCast(nil), c.RecentCasts...)
	return out
}

// #endregion cadence-state

// #region discovery-snapshot

// DiscoverySnapshot is the daily set of external items and sparks.
type DiscoverySnapshot struct {
	Date      string          `json:"date"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero"`
	Sparks    []string        `json:"sparks"`
	Items     []DiscoveryItem `json:"items"`
}

// DiscoveryItem is one search hit kept in the snapshot.
type DiscoveryItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// #endregion discovery-snapshot

// #region reply-dedup

// ReplyDedupState records every reply the agent has answered.
type ReplyDedupState struct {
	RunCount int                    `json:"runCount"`
	Replied  map[string]ReplyRecord `json:"replied"`
}

// ReplyRecord describes one answered reply.
type ReplyRecord struct {
	At           time.Time `json:"at"`
	Author       string    `json:"author"`
	Response     string    `json:"response"`
	OurReplyHash string    `json:"ourReplyHash,omitempty"`
	IsThread     bool      `json:"isThread"`
	Researched   bool      `json:"researched"`
}

// HasReplied reports whether hash was already answered.
func (r ReplyDedupState) HasReplied(hash string) bool {
	_, ok := r.Replied[hash]
	return ok
}

// #endregion reply-dedup

// #region tip-ledger

// TipLedger maps a post hash to its tip record. One record per post, ever.
type TipLedger struct {
	Tipped map[string]TipRecord `json:"tipped"`
}

// TipRecord is the audit trail of one distribution.
type TipRecord struct {
	At        time.Time `json:"at"`
	Block     uint64    `json:"block"`
	BlockHash string    `json:"blockHash"`
	Seed      string    `json:"seed"`
	SeedHash  string    `json:"seedHash"`
	Winners   []Winner  `json:"winners"`
	TipAmount string    `json:"tipAmount"`
	Txs       []TipTx   `json:"txs"`
	Partial   bool      `json:"partial,omitempty"`
}

// Winner is a selected participant.
type Winner struct {
	FID      uint64 `json:"fid"`
	Username string `json:"username"`
	Address  string `json:"address"`
}

// TipTx is one sent transfer. Unconfirmed is set when the receipt wait
// failed after broadcast.
type TipTx struct {
	Address     string `json:"address"`
	Username    string `json:"username"`
	TxHash      string `json:"txHash"`
	ReplyHash   string `json:"replyHash,omitempty"`
	Unconfirmed bool   `json:"unconfirmed,omitempty"`
}

// #endregion tip-ledger
