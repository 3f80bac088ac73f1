// Package app bootstraps the shared runtime for each entry point: config,
// persona, state store, run lock, tracing and the external clients.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region flags

// Flags are the per-run switches shared by every entry point.
type Flags struct {
	DryRun bool
	Force  bool
}

// ParseFlags parses args into Flags. --force is only registered when
// withForce is set.
func ParseFlags(fs *flag.FlagSet, args []string, withForce bool) (Flags, error) {
	var f Flags
	fs.BoolVar(&f.DryRun, "dry-run", false, "perform reads and decisions, skip every write and publish")
	if withForce {
		fs.BoolVar(&f.Force, "force", false, "bypass cadence gating")
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// #endregion flags

// #region runtime

// Runtime is everything a job needs that outlives a single call.
type Runtime struct {
	Job      string
	Config   config.Agent
	Persona  config.Persona
	Store    *state.SQLiteStore
	Recorder *logging.Recorder
	HTTP     *http.Client

	closers  []io.Closer
	shutdown func(context.Context) error
}

// Open loads configuration and opens the state store for job.
func Open(ctx context.Context, job string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	persona, err := config.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}
	store, err := state.NewSQLiteStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "buildstreak-"+job)
	if err != nil {
		log.Printf("[APP] tracing disabled: %v", err)
	}
	return &Runtime{
		Job:      job,
		Config:   cfg,
		Persona:  persona,
		Store:    store,
		Recorder: logging.NewRecorder(store.DB(), job),
		HTTP:     &http.Client{},
		closers:  []io.Closer{store},
		shutdown: shutdown,
	}, nil
}

// Close flushes spans and releases every resource in reverse order.
func (r *Runtime) Close(ctx context.Context) {
	if r.shutdown != nil {
		if err := r.shutdown(ctx); err != nil {
			log.Printf("[APP] tracing shutdown: %v", err)
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			log.Printf("[APP] close: %v", err)
		}
	}
}

func (r *Runtime) track(c io.Closer) { r.closers = append(r.closers, c) }

// #endregion runtime

// #region lock

// ErrLocked reports that another run of the same job holds the lease.
var ErrLocked = errors.New("run lock held")

// WithLock runs fn while holding the job's lease. A held lease is logged
// and reported as ErrLocked so the caller can exit cleanly.
func (r *Runtime) WithLock(ctx context.Context, fn func(context.Context) error) error {
	if !r.Config.RunLock {
		return fn(ctx)
	}
	owner := uuid.New().String()
	ok, err := r.Store.Acquire(ctx, r.Job, owner, r.Config.RunLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		r.Recorder.Decide(logging.DecisionSkip, "another run holds the lock", nil)
		return ErrLocked
	}
	defer func() {
		if err := r.Store.Release(context.WithoutCancel(ctx), r.Job, owner); err != nil {
			log.Printf("[APP] %v", err)
		}
	}()
	return fn(ctx)
}

// #endregion lock

// #region helpers

// Draw is the uniform [0,1) source used for cadence and surprise rolls.
func Draw() float64 { return rand.Float64() }

func wrapMissing(err error) error {
	if errors.Is(err, config.ErrMissing) {
		return err
	}
	return fmt.Errorf("%w: %v", config.ErrMissing, err)
}

// #endregion helpers
