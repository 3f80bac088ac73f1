package app

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/cadence"
	"github.com/danielpatrickdp/buildstreak-agent/internal/classifier"
	"github.com/danielpatrickdp/buildstreak-agent/internal/crawler"
	"github.com/danielpatrickdp/buildstreak-agent/internal/discovery"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/jobs"
	"github.com/danielpatrickdp/buildstreak-agent/internal/reward"
)

// #region entry

// Job names double as run-lock names and decision log job values.
const (
	JobPost     = "post"
	JobReply    = "reply"
	JobTip      = "tip"
	JobDiscover = "discover"
)

// Run opens the runtime for job, takes the lock and executes the flow. A
// held lock is a clean exit.
func Run(ctx context.Context, job string, flags Flags) error {
	rt, err := Open(ctx, job)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	var flow func(context.Context, *Runtime, Flags) error
	switch job {
	case JobPost:
		flow = runPost
	case JobReply:
		flow = runReply
	case JobTip:
		flow = runTip
	default:
		flow = runDiscover
	}
	err = rt.WithLock(ctx, func(ctx context.Context) error { return flow(ctx, rt, flags) })
	if errors.Is(err, ErrLocked) {
		return nil
	}
	return err
}

// #endregion entry

// #region flows

func runPost(ctx context.Context, rt *Runtime, flags Flags) error {
	loc, err := rt.Config.Location()
	if err != nil {
		return err
	}
	var poster farcaster.Poster
	if !flags.DryRun {
		if poster, err = rt.Poster(rt.Reader()); err != nil {
			return err
		}
	}
	job := &jobs.PostJob{
		Engine:   cadence.NewEngine(cadence.ConfigFrom(rt.Config.Cadence), loc, Draw),
		Composer: rt.Composer(),
		Poster:   poster,
		Store:    rt.Store,
		Recorder: rt.Recorder,
		Pools:    cadence.Pools{Moods: rt.Persona.Moods, Energy: rt.Persona.Energy, Themes: rt.Persona.Themes},
		DryRun:   flags.DryRun,
		Force:    flags.Force,
	}
	return job.Run(ctx)
}

func runReply(ctx context.Context, rt *Runtime, flags Flags) error {
	if err := rt.Config.RequireIdentity(); err != nil {
		return err
	}
	reader := rt.Reader()
	var poster farcaster.Poster
	if !flags.DryRun {
		var err error
		if poster, err = rt.Poster(reader); err != nil {
			return err
		}
	}
	lim := rt.Config.Replies
	job := &jobs.ReplyJob{
		AgentFID:     rt.Config.Farcaster.FID,
		Reader:       reader,
		Poster:       poster,
		Crawler:      crawler.New(reader, rt.Config.Farcaster.FID, lim.MaxThreadDepth),
		Classifier:   classifier.New(rt.Searcher(), lim.MaxSearchesPerRun, rt.Config.Search.Delay),
		Composer:     rt.Composer(),
		Store:        rt.Store,
		Recorder:     rt.Recorder,
		Limits:       lim,
		DryRun:       flags.DryRun,
		EagerPersist: rt.Config.EagerPersist,
	}
	_, err := job.Run(ctx)
	return err
}

func runTip(ctx context.Context, rt *Runtime, flags Flags) error {
	if err := rt.Config.RequireIdentity(); err != nil {
		return err
	}
	tok, err := rt.Token()
	if err != nil {
		return err
	}
	reader := rt.Reader()
	var poster farcaster.Poster
	if !flags.DryRun {
		if poster, err = rt.Poster(reader); err != nil {
			return err
		}
	}
	cfg := reward.Config{
		AgentFID:      rt.Config.Farcaster.FID,
		Amount:        rt.Config.Tips.Amount,
		Symbol:        rt.Config.Chain.TokenSymbol,
		MaxWinners:    rt.Config.Tips.MaxWinners,
		MinAge:        time.Duration(rt.Config.Tips.MinAgeMinutes) * time.Minute,
		ExplorerTxURL: rt.Config.Chain.ExplorerTxURL,
		DryRun:        flags.DryRun,
		EagerPersist:  rt.Config.EagerPersist,
	}
	job := &jobs.TipJob{
		Distributor: reward.New(cfg, tok, reader, poster, rt.Composer(), rt.Store),
		Store:       rt.Store,
		Recorder:    rt.Recorder,
	}
	_, err = job.Run(ctx)
	return err
}

func runDiscover(ctx context.Context, rt *Runtime, flags Flags) error {
	if err := rt.Config.RequireSearch(); err != nil {
		return err
	}
	search := rt.Searcher()
	loc, err := rt.Config.Location()
	if err != nil {
		return err
	}
	cfg := discovery.Config{
		Queries:      rt.Persona.Queries,
		Delay:        rt.Config.Search.Delay,
		MarkdownPath: rt.Config.DiscoveryMD,
		DryRun:       flags.DryRun,
	}
	job := &jobs.DiscoverJob{
		Discoverer: discovery.New(cfg, search, rt.Composer(), rt.Store, loc),
		Recorder:   rt.Recorder,
	}
	_, err = job.Run(ctx)
	return err
}

// #endregion flows
