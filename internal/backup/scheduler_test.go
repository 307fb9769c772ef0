package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	for s, want := range map[string]time.Duration{
		"daily":  24 * time.Hour,
		"weekly": 7 * 24 * time.Hour,
		"manual": 0,
	} {
		i, err := ParseInterval(s)
		require.NoError(t, err)
		assert.Equal(t, want, i.Period())
	}

	_, err := ParseInterval("hourly")
	assert.True(t, IsErrorCode(err, ErrValidation))
}

func TestSchedulerRunsMissedBackupOnStart(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(env.mgr, IntervalDaily)

	s.Start(t.Context())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		return len(env.state.History()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	st := env.state.Schedule()
	assert.Equal(t, testNow, st.LastSuccessful)
	assert.Equal(t, testNow, st.LastAttempted)
	assert.Zero(t, st.FailureCount)
	// the fixed clock never advances, so the next run sits one period out
	assert.Equal(t, testNow.Add(24*time.Hour), env.state.Schedule().NextScheduled)
}

func TestSchedulerCountsFailures(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	env.local.err = errTargetDown
	s := NewScheduler(env.mgr, IntervalWeekly)

	s.Start(t.Context())
	require.Eventually(t, func() bool {
		return env.state.Schedule().FailureCount == 1
	}, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	st := env.state.Schedule()
	assert.Equal(t, testNow, st.LastAttempted)
	assert.True(t, st.LastSuccessful.IsZero())
	assert.Empty(t, env.state.History())
}

func TestSchedulerManualNeverStarts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{})
	s := NewScheduler(env.mgr, IntervalManual)
	s.Start(t.Context())
	assert.False(t, s.IsRunning())
	s.Stop()
}
