package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	logger := zerolog.New(io.Discard)
	return New(&logger)
}

func TestAddValidatesSpec(t *testing.T) {
	s := newTestScheduler()
	assert.Error(t, s.Add("broken", "not a cron", 0, func(context.Context) error { return nil }))
	assert.NoError(t, s.Add("disabled", "", 0, func(context.Context) error { return nil }))
	assert.Error(t, s.RunNow("disabled"), "disabled job is not registered")
	assert.NoError(t, s.Add("sync", "*/30 * * * *", time.Minute, func(context.Context) error { return nil }))
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")

	var deadline bool
	require.NoError(t, s.Add("reminders", "0 * * * *", time.Minute, func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return boom
	}))

	assert.ErrorIs(t, s.RunNow("reminders"), boom)
	assert.True(t, deadline, "job context carries its timeout")
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduledExecution(t *testing.T) {
	s := newTestScheduler()

	var calls int32
	require.NoError(t, s.Add("tick", "@every 1s", 0, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestPanickingJobIsRecovered(t *testing.T) {
	s := newTestScheduler()

	var after int32
	require.NoError(t, s.Add("panics", "@every 1s", 0, func(context.Context) error { panic("oops") }))
	require.NoError(t, s.Add("fine", "@every 1s", 0, func(context.Context) error {
		atomic.AddInt32(&after, 1)
		return nil
	}))

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&after) >= 2 }, 4*time.Second, 50*time.Millisecond)
}
