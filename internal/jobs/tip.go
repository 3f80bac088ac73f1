package jobs

import (
	"context"

	"github.com/danielpatrickdp/buildstreak-agent/internal/discovery"
	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/reward"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region tip-job

// TipJob tips participants under the most recent check-in post.
type TipJob struct {
	Distributor *reward.Distributor
	Store       state.Store
	Recorder    *logging.Recorder
}

// Run reads the last post reference from the cadence document and hands it
// to the distributor.
func (j *TipJob) Run(ctx context.Context) (out reward.Outcome, err error) {
	ctx, span := telemetry.Start(ctx, "job.tip")
	defer func() { telemetry.End(span, err) }()

	cs, err := state.LoadCadence(ctx, j.Store)
	if err != nil {
		return reward.Outcome{}, err
	}
	out, err = j.Distributor.Run(ctx, reward.Input{PostHash: cs.LastHash, PostedAt: cs.LastPostAt})
	if err != nil {
		j.Recorder.Decide(logging.DecisionError, err.Error(), nil)
		return out, err
	}

	details := map[string]any{"post": cs.LastHash, "eligible": out.Eligible}
	if out.Selection != nil {
		details["seed"] = out.Selection.Seed
		details["seedHash"] = out.Selection.SeedHash
	}
	if out.Record != nil {
		details["txs"] = out.Record.Txs
	}
	reason := out.Reason
	if reason == "" {
		reason = string(out.Status)
	}
	j.Recorder.Decide(tipDecision(out.Status), reason, details)
	return out, nil
}

func tipDecision(s reward.Status) string {
	switch s {
	case reward.StatusTipped:
		return logging.DecisionAct
	case reward.StatusAborted, reward.StatusPartial:
		return logging.DecisionAbort
	default:
		return logging.DecisionSkip
	}
}

// #endregion tip-job

// #region discover-job

// DiscoverJob refreshes the daily discovery snapshot.
type DiscoverJob struct {
	Discoverer *discovery.Discoverer
	Recorder   *logging.Recorder
}

// Run builds and stores today's snapshot.
func (j *DiscoverJob) Run(ctx context.Context) (discovery.Result, error) {
	res, err := j.Discoverer.Run(ctx)
	if err != nil {
		j.Recorder.Decide(logging.DecisionError, err.Error(), nil)
		return res, err
	}
	if res.Kept {
		j.Recorder.Decide(logging.DecisionSkip, "no items found, previous snapshot kept", map[string]int{"failedQueries": res.Failed})
		return res, nil
	}
	j.Recorder.Decide(logging.DecisionDone, "discovery updated", map[string]any{
		"date": res.Snapshot.Date, "items": len(res.Snapshot.Items), "sparks": res.Snapshot.Sparks,
	})
	return res, nil
}

// #endregion discover-job
