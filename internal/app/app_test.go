package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	f, err := ParseFlags(fs, []string{"--dry-run", "--force"}, true)
	require.NoError(t, err)
	assert.True(t, f.DryRun)
	assert.True(t, f.Force)

	fs = flag.NewFlagSet("reply", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, err = ParseFlags(fs, []string{"--force"}, false)
	assert.Error(t, err, "--force is only valid for the post flow")
}

func testRuntime(t *testing.T) *Runtime {
	t.Helper()
	store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &Runtime{
		Job:    JobReply,
		Config: config.Agent{RunLock: true, RunLockTTL: time.Minute},
		Store:  store,
	}
}

func TestWithLockRunsAndReleases(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	calls := 0
	require.NoError(t, rt.WithLock(ctx, func(context.Context) error { calls++; return nil }))
	require.NoError(t, rt.WithLock(ctx, func(context.Context) error { calls++; return nil }))
	assert.Equal(t, 2, calls, "lock must be released after each run")
}

func TestWithLockHeld(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	ok, err := rt.Store.Acquire(ctx, JobReply, "other-run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = rt.WithLock(ctx, func(context.Context) error { called = true; return nil })
	assert.True(t, errors.Is(err, ErrLocked))
	assert.False(t, called)
}

func TestWithLockDisabled(t *testing.T) {
	rt := testRuntime(t)
	rt.Config.RunLock = false
	ctx := context.Background()

	rt.Store.Acquire(ctx, JobReply, "other-run", time.Minute)
	called := false
	require.NoError(t, rt.WithLock(ctx, func(context.Context) error { called = true; return nil }))
	assert.True(t, called)
}

func TestWithLockPropagatesError(t *testing.T) {
	rt := testRuntime(t)
	boom := errors.New("boom")
	err := rt.WithLock(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWrapMissing(t *testing.T) {
	err := wrapMissing(errors.New("bad signer key"))
	assert.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "bad signer key")

	already := wrapMissing(config.ErrMissing)
	assert.Equal(t, config.ErrMissing, already)
}
