package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/config"
)

func TestNewScheduler(t *testing.T) {
	t.Parallel()
	_, err := NewScheduler(context.Background(), config.ScheduleConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	s, err := NewScheduler(context.Background(), config.ScheduleConfig{Timezone: "America/New_York"})
	require.NoError(t, err)
	require.NoError(t, s.Add("cleanup", "0 0 23 * * 0", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("dashboard", "0 0 8 * * 1", func(context.Context) error { return nil }))
	assert.Equal(t, 2, s.Entries())

	err = s.Add("bad", "not a spec", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule bad")
}

func TestScheduler_RunsJobs(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler(context.Background(), config.ScheduleConfig{})
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, s.Add("tick", "* * * * * *", func(context.Context) error {
		calls.Add(1)
		return errors.New("job errors are logged")
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler(context.Background(), config.ScheduleConfig{})
	require.NoError(t, err)

	var active, peak atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Add("slow", "* * * * * *", func(context.Context) error {
		n := active.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		<-release
		active.Add(-1)
		return nil
	}))
	s.Start()
	time.Sleep(2500 * time.Millisecond)
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), peak.Load())
}
