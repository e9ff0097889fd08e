package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap/zaptest"
)

// recordingSleeper collects requested delays instead of sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(d time.Duration) { r.delays = append(r.delays, d) }

func newTestExecutor(t *testing.T) (*Executor, *recordingSleeper) {
	t.Helper()
	otelzap.ReplaceGlobals(otelzap.New(zaptest.NewLogger(t)))
	s := &recordingSleeper{}
	return &Executor{Sleep: s.Sleep}, s
}

func TestRun_SucceedsFirstTry(t *testing.T) {
	exec, sleeper := newTestExecutor(t)
	calls := 0

	res := exec.Run(context.Background(), steps.Step{
		Name:       "A",
		Body:       func(context.Context) error { calls++; return nil },
		RetryDelay: time.Second,
	})

	assert.True(t, res.Success)
	assert.NoError(t, res.LastError)
	assert.Equal(t, 1, res.AttemptsUsed)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestRun_RetryBound(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		want    int
	}{
		{name: "explicit three", retries: 3, want: 3},
		{name: "single attempt", retries: 1, want: 1},
		{name: "default", retries: 0, want: steps.DefaultRetries},
		{name: "five", retries: 5, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, sleeper := newTestExecutor(t)
			calls := 0
			boom := errors.New("apt lock held")

			res := exec.Run(context.Background(), steps.Step{
				Name:       "C",
				Body:       func(context.Context) error { calls++; return boom },
				Retries:    tt.retries,
				RetryDelay: 250 * time.Millisecond,
			})

			assert.False(t, res.Success)
			assert.Equal(t, tt.want, calls)
			assert.Equal(t, tt.want, res.AttemptsUsed)
			assert.ErrorIs(t, res.LastError, boom)

			// One pause between each pair of consecutive attempts, none after the last.
			require.Len(t, sleeper.delays, tt.want-1)
			for _, d := range sleeper.delays {
				assert.Equal(t, 250*time.Millisecond, d)
			}
		})
	}
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	exec, sleeper := newTestExecutor(t)
	calls := 0

	res := exec.Run(context.Background(), steps.Step{
		Name: "B",
		Body: func(context.Context) error {
			calls++
			if calls < 3 {
				return hestia_err.Transientf("attempt %d", calls)
			}
			return nil
		},
		Retries:    5,
		RetryDelay: time.Second,
	})

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.AttemptsUsed)
	assert.Len(t, sleeper.delays, 2)
}

func TestRun_FatalDoesNotRetry(t *testing.T) {
	exec, sleeper := newTestExecutor(t)
	calls := 0

	res := exec.Run(context.Background(), steps.Step{
		Name: "setup-postgres",
		Body: func(context.Context) error {
			calls++
			return hestia_err.Fatalf("postgres 12 is older than required 14")
		},
		Retries:    3,
		RetryDelay: time.Second,
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.AttemptsUsed)
	assert.True(t, hestia_err.IsFatal(res.LastError))
	assert.Empty(t, sleeper.delays)
}

func TestRun_FatalAfterTransient(t *testing.T) {
	exec, sleeper := newTestExecutor(t)
	calls := 0

	res := exec.Run(context.Background(), steps.Step{
		Name: "X",
		Body: func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("flaky")
			}
			return hestia_err.Fatal(errors.New("give up"))
		},
		Retries: 4,
	})

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.AttemptsUsed)
	assert.EqualError(t, res.LastError, "give up")
	assert.Empty(t, sleeper.delays, "zero RetryDelay never sleeps")
}

func TestRun_PanicBecomesFatal(t *testing.T) {
	exec, _ := newTestExecutor(t)
	calls := 0

	res := exec.Run(context.Background(), steps.Step{
		Name: "buggy",
		Body: func(context.Context) error {
			calls++
			var m map[string]int
			m["x"] = 1
			return nil
		},
		Retries: 3,
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.True(t, hestia_err.IsFatal(res.LastError))
	assert.Contains(t, res.LastError.Error(), "panicked")
	assert.Equal(t, 3, hestia_err.GetExitCode(res.LastError))
}

func TestNew_UsesRealSleep(t *testing.T) {
	exec := New()
	require.NotNil(t, exec.Sleep)

	calls := 0
	start := time.Now()
	res := exec.Run(context.Background(), steps.Step{
		Name:       "timed",
		Body:       func(context.Context) error { calls++; return errors.New("no") },
		Retries:    2,
		RetryDelay: 20 * time.Millisecond,
	})
	assert.False(t, res.Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
