package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shirly.shop/app/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAddRejectsBadSpecAndSkipsDisabled(t *testing.T) {
	s := NewScheduler(nil)
	noop := func(context.Context, time.Time) (int64, error) { return 0, nil }

	require.Error(t, s.Add(Job{Name: "bad", Spec: "every now and then", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "off", Spec: "-", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "ok", Spec: "@every 1h", Run: noop}))
	assert.Equal(t, 1, s.Entries())
}

func TestRunNowReportsOutcome(t *testing.T) {
	s := NewScheduler(nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var seen []string
	s.OnRun = func(name string, _ time.Duration, err error) {
		if err != nil {
			name += ":err"
		}
		seen = append(seen, name)
	}

	var gotNow time.Time
	s.RunNow(context.Background(), Job{Name: "a", Run: func(_ context.Context, now time.Time) (int64, error) {
		gotNow = now
		return 3, nil
	}})
	s.RunNow(context.Background(), Job{Name: "b", Run: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("boom")
	}})

	assert.Equal(t, fixed, gotNow)
	assert.Equal(t, []string{"a", "b:err"}, seen)
}

func TestRunStopsWithContext(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context, time.Time) (int64, error) {
		runs.Add(1)
		return 0, nil
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestMaintenanceUsesConfiguredSpecs(t *testing.T) {
	var cfg config.Config
	cfg.Jobs.ExpireCheckouts = "@every 5m"
	cfg.Jobs.PruneSessions = "@hourly"
	cfg.Jobs.PruneNotifications = "-"

	js := Maintenance(cfg, Deps{})
	require.Len(t, js, 3)
	assert.Equal(t, "expire_checkouts", js[0].Name)
	assert.Equal(t, "@every 5m", js[0].Spec)

	s := NewScheduler(nil)
	for _, j := range js {
		require.NoError(t, s.Add(j))
	}
	assert.Equal(t, 2, s.Entries())
}
