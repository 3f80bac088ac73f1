package cadence

import (
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

// #region slot
// Slot is the time-of-day bucket a post is written for.
type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
	SlotNight     Slot = "night"
)

// #endregion slot

// #region config
// Config holds the cadence thresholds.
type Config struct {
	QuietStart   int
	QuietEnd     int
	QuietEnabled bool
	MinPosts     int
	TargetPosts  int // reported in decision logs only
	MaxPosts     int
	Cooldown     time.Duration
	MustPostBy   int // hour by which MinPosts must have happened
}

// DefaultConfig mirrors the environment defaults.
func DefaultConfig() Config {
	return Config{
		QuietStart:   22,
		QuietEnd:     6,
		QuietEnabled: true,
		MinPosts:     1,
		TargetPosts:  3,
		MaxPosts:     5,
		Cooldown:     2 * time.Hour,
		MustPostBy:   20,
	}
}

// ConfigFrom converts the env configuration.
func ConfigFrom(c config.Cadence) Config {
	return Config{
		QuietStart:   c.QuietStart,
		QuietEnd:     c.QuietEnd,
		QuietEnabled: bool(c.QuietEnabled),
		MinPosts:     c.MinPosts,
		TargetPosts:  c.TargetPosts,
		MaxPosts:     c.MaxPosts,
		Cooldown:     time.Duration(c.CooldownHours * float64(time.Hour)),
		MustPostBy:   c.MustPostBy,
	}
}

// #endregion config

// #region decision
// Decision is the output of Engine.Decide. State is the rolled-over copy the
// caller should continue with; the input state is never mutated.
type Decision struct {
	Act         bool
	Slot        Slot
	Reason      string
	Probability float64
	Forced      bool // deadline forced p to 1
	Draw        float64
	Today       string
	Hour        int
	PostsToday  int
	Target      int
	State       state.CadenceState
}

// #endregion decision

// #region picks
// Pools are the option lists mood, energy and theme are drawn from.
type Pools struct {
	Moods  []string
	Energy []int
	Themes []string
}

// Picks is the deterministic selection for one (date, hour).
type Picks struct {
	Mood   string
	Energy int
	Theme  string
}

// #endregion picks
