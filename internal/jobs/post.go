// Package jobs wires the engines into the four scheduled run flows. Each
// flow reads its document once, decides, acts and writes back once.
package jobs

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/cadence"
	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/discovery"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/llm"
	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region post-job

// PostJob is the cadence-gated check-in post.
type PostJob struct {
	Engine   *cadence.Engine
	Composer *compose.Composer
	Poster   farcaster.Poster // nil only in dry runs
	Store    state.Store
	Recorder *logging.Recorder
	Pools    cadence.Pools

	DryRun bool
	Force  bool

	now  func() time.Time
	roll func() float64
}

func (j *PostJob) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

func (j *PostJob) surpriseDraw() float64 {
	if j.roll != nil {
		return j.roll()
	}
	return rand.Float64()
}

// Run executes one post cycle. A skip is a normal outcome. Only a missing
// text provider and persistence failures are returned as errors.
func (j *PostJob) Run(ctx context.Context) (err error) {
	ctx, span := telemetry.Start(ctx, "job.post")
	defer func() { telemetry.End(span, err) }()

	cs, err := state.LoadCadence(ctx, j.Store)
	if err != nil {
		return err
	}
	now := j.clock().In(j.Engine.Location())
	d := j.Engine.Decide(now, cs, j.Force)
	details := map[string]any{
		"slot": d.Slot, "hour": d.Hour, "postsToday": d.PostsToday, "target": d.Target,
		"probability": d.Probability, "draw": d.Draw, "streak": d.State.StreakDays,
	}
	if !d.Act {
		j.Recorder.Decide(logging.DecisionSkip, d.Reason, details)
		return nil
	}
	log.Printf("[CADENCE] %s", d.Reason)

	picks := cadence.Choose(j.Pools, d.Today, d.Hour)
	surprise := cadence.SurpriseRoll(d.State, d.Today, j.surpriseDraw())

	snap, err := state.LoadDiscovery(ctx, j.Store)
	if err != nil {
		return err
	}

	spec := compose.PostSpec{
		Slot:       string(d.Slot),
		Mood:       picks.Mood,
		Energy:     picks.Energy,
		Theme:      picks.Theme,
		Surprise:   surprise,
		StreakDays: d.State.StreakDays,
		Sparks:     discovery.SparksFor(snap, d.Today),
		Recent:     d.State.RecentPrompts,
	}
	text, ok := j.Composer.Compose(ctx, compose.PostPrompt(j.Composer.Persona(), spec))

	if j.DryRun {
		shown := text
		if !ok {
			shown = "(no prompt generated)"
		}
		log.Printf("[%s] %s", d.Slot, shown)
		j.Recorder.Decide(logging.DecisionSkip, "dry run", map[string]any{"slot": d.Slot, "text": text})
		return nil
	}
	if !j.Composer.HasGenerator() {
		j.Recorder.Decide(logging.DecisionError, llm.ErrNoProvider.Error(), nil)
		return llm.ErrNoProvider
	}
	if !ok {
		j.Recorder.Decide(logging.DecisionSkip, "no acceptable post after retries", details)
		return nil
	}

	hash, err := j.Poster.Publish(ctx, text, nil)
	if err != nil {
		j.Recorder.Decide(logging.DecisionAbort, fmt.Sprintf("publish failed: %v", err), details)
		return nil
	}

	next := cadence.RecordPost(d.State, j.clock().In(j.Engine.Location()), hash, text, surprise)
	if err := state.SaveCadence(ctx, j.Store, next); err != nil {
		return err
	}
	details["hash"] = hash
	details["surprise"] = surprise
	j.Recorder.Decide(logging.DecisionAct, "posted "+hash, details)
	return nil
}

// #endregion post-job
