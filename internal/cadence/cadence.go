// Package cadence decides whether the agent should post in the current cycle.
package cadence

import (
	"fmt"
	"math"
	"time"
	"unicode/utf16"

	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

// #region constants

const (
	MaxProbability = 0.9
	SurpriseChance = 0.22
)

var baseProbability = map[Slot]float64{
	SlotMorning:   0.25,
	SlotAfternoon: 0.32,
	SlotEvening:   0.30,
	SlotNight:     0.12,
}

const dateLayout = "2006-01-02"

// #endregion constants

// #region pure-helpers

// SlotForHour buckets an hour of day.
func SlotForHour(h int) Slot {
	switch {
	case h < 12:
		return SlotMorning
	case h < 17:
		return SlotAfternoon
	case h < 22:
		return SlotEvening
	default:
		return SlotNight
	}
}

// IsQuietHour handles ranges that wrap past midnight.
func IsQuietHour(h int, cfg Config) bool {
	if !cfg.QuietEnabled {
		return false
	}
	if cfg.QuietStart < cfg.QuietEnd {
		return h >= cfg.QuietStart && h < cfg.QuietEnd
	}
	return h >= cfg.QuietStart || h < cfg.QuietEnd
}

// DateKey formats t as YYYY-MM-DD in t's own location.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// Rollover applies the day change to a copy of s. Same-day calls return an
// unchanged copy.
func Rollover(s state.CadenceState, now time.Time) state.CadenceState {
	out := s.Clone()
	today := DateKey(now)
	if out.LastDateKey == today {
		return out
	}
	yesterday := DateKey(now.AddDate(0, 0, -1))

	if out.LastDateKey == yesterday {
		out.StreakDays++
	} else {
		out.StreakDays = 1
	}
	out.PostsByDate[today] = 0
	out.LastDateKey = today
	for k := range out.PostsByDate {
		if k != today && k != yesterday {
			delete(out.PostsByDate, k)
		}
	}
	return out
}

// Probability computes the soft-gate probability. forced is true when the
// minimum-posts deadline has been missed, in which case p is exactly 1.
func Probability(slot Slot, hour, postsToday, streak int, cfg Config) (p float64, forced bool) {
	if postsToday < cfg.MinPosts && hour >= cfg.MustPostBy {
		return 1, true
	}

	p, ok := baseProbability[slot]
	if !ok {
		p = 0.2
	}
	if postsToday == 0 && hour >= 11 {
		p += 0.25
	}
	if postsToday <= 1 && hour >= 16 {
		p += 0.20
	}
	if streak >= 3 {
		p += 0.05
	}
	return math.Min(p, MaxProbability), false
}

// #endregion pure-helpers

// #region engine

// Engine evaluates the hard gates then the probabilistic soft gate.
type Engine struct {
	cfg  Config
	loc  *time.Location
	draw func() float64
}

// NewEngine creates an engine. draw must return values in [0,1).
func NewEngine(cfg Config, loc *time.Location, draw func() float64) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{cfg: cfg, loc: loc, draw: draw}
}

// Location is the zone the engine derives date and hour in.
func (e *Engine) Location() *time.Location { return e.loc }

// Decide returns whether to post now. force bypasses every gate.
func (e *Engine) Decide(now time.Time, s state.CadenceState, force bool) Decision {
	local := now.In(e.loc)
	hour := local.Hour()
	rolled := Rollover(s, local)
	today := DateKey(local)
	posts := rolled.PostsByDate[today]

	d := Decision{
		Slot:       SlotForHour(hour),
		Today:      today,
		Hour:       hour,
		PostsToday: posts,
		Target:     e.cfg.TargetPosts,
		State:      rolled,
	}
	d.Probability, d.Forced = Probability(d.Slot, hour, posts, rolled.StreakDays, e.cfg)

	if force {
		d.Act = true
		d.Reason = "force flag set"
		return d
	}

	// --- Hard gates ---
	if IsQuietHour(hour, e.cfg) {
		d.Reason = fmt.Sprintf("quiet hours (%02d:00 in %d-%d)", hour, e.cfg.QuietStart, e.cfg.QuietEnd)
		return d
	}
	if posts >= e.cfg.MaxPosts {
		d.Reason = fmt.Sprintf("max posts reached (%d/%d)", posts, e.cfg.MaxPosts)
		return d
	}
	if !rolled.LastPostAt.IsZero() {
		since := now.Sub(rolled.LastPostAt)
		if since < e.cfg.Cooldown {
			d.Reason = fmt.Sprintf("cooldown active (%s since last post, need %s)", since.Truncate(time.Minute), e.cfg.Cooldown)
			return d
		}
	}

	// --- Soft gate ---
	if d.Probability >= 1 {
		d.Act = true
		d.Reason = fmt.Sprintf("minimum %d post(s) not met by %02d:00", e.cfg.MinPosts, e.cfg.MustPostBy)
		return d
	}
	d.Draw = e.draw()
	if d.Draw > d.Probability {
		d.Reason = fmt.Sprintf("decided not to post (draw %.2f > p %.2f)", d.Draw, d.Probability)
		return d
	}
	d.Act = true
	d.Reason = fmt.Sprintf("posting (draw %.2f <= p %.2f)", d.Draw, d.Probability)
	return d
}

// #endregion engine

// #region picks

// Pick selects an option with a stable string hash of seed.
func Pick[T any](options []T, seed string) T {
	var zero T
	if len(options) == 0 {
		return zero
	}
	var h uint32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = h*31 + uint32(c)
	}
	return options[h%uint32(len(options))]
}

// Choose derives mood and energy from "date:hour" and theme from
// "date:hour:theme".
func Choose(p Pools, today string, hour int) Picks {
	seed := fmt.Sprintf("%s:%d", today, hour)
	return Picks{
		Mood:   Pick(p.Moods, seed),
		Energy: Pick(p.Energy, seed),
		Theme:  Pick(p.Themes, seed+":theme"),
	}
}

// SurpriseRoll allows at most one surprise post per day.
func SurpriseRoll(s state.CadenceState, today string, draw float64) bool {
	return s.LastSurpriseDate != today && draw < SurpriseChance
}

// RecordPost returns s updated with a successful publish.
func RecordPost(s state.CadenceState, now time.Time, hash, text string, surprise bool) state.CadenceState {
	out := s.Clone()
	today := DateKey(now)
	out.LastPostAt = now
	out.PostsByDate[today]++
	out.RecentPrompts = prepend(out.RecentPrompts, text, state.MaxRecentPrompts)
	out.RecentCasts = prepend(out.RecentCasts, state.RecentCast{Hash: hash, Text: text, PostedAt: now}, state.MaxRecentCasts)
	out.LastHash = hash
	if surprise {
		out.LastSurpriseDate = today
	}
	return out
}

func prepend[T any](list []T, v T, max int) []T {
	out := append([]T{v}, list...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// #endregion picks
