package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/macbridge/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   ErrClass
	}{
		{"event timeout code", "execution error: Notes got an error: AppleEvent timed out. (-1712)", ClassTransient},
		{"invalid connection code", "execution error: connection is invalid. (-609)", ClassTransient},
		{"timed out text", "operation Timed Out", ClassTransient},
		{"permission code", "Not authorized to send Apple events to Notes. (-1743)", ClassPermissionDenied},
		{"not running code", "Application isn't running. (-600)", ClassAppNotRunning},
		{"anything else", "execution error: some syntax problem (-2741)", ClassGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classify("Notes", tt.stderr)
			assert.Equal(t, tt.want, se.Class)
			assert.Equal(t, "Notes", se.App)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&ScriptError{Class: ClassTransient}))
	assert.False(t, IsTransient(&ScriptError{Class: ClassGeneric}))
	assert.False(t, IsTransient(errors.New("plain error")))
}

func newTestExecutor() *Executor {
	cfg := config.Default()
	cfg.RetryBaseDelayMS = 1
	return NewExecutor(cfg)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	x := newTestExecutor()

	calls := 0
	x.attempt = func(ctx context.Context, app, script string) (string, error) {
		calls++
		if calls < 3 {
			return "", &ScriptError{Class: ClassTransient, App: app}
		}
		return "done", nil
	}

	out, err := x.Run(context.Background(), "Notes", "script")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, calls)
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	x := newTestExecutor()

	calls := 0
	x.attempt = func(ctx context.Context, app, script string) (string, error) {
		calls++
		return "", &ScriptError{Class: ClassTransient, App: app}
	}

	_, err := x.Run(context.Background(), "Notes", "script")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRunDoesNotRetryOtherClasses(t *testing.T) {
	x := newTestExecutor()

	calls := 0
	x.attempt = func(ctx context.Context, app, script string) (string, error) {
		calls++
		return "", &ScriptError{Class: ClassPermissionDenied, App: app}
	}

	_, err := x.Run(context.Background(), "Notes", "script")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-transient failures fail on first occurrence")

	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ClassPermissionDenied, se.Class)
}

func TestRunHonorsContextBetweenRetries(t *testing.T) {
	x := newTestExecutor()
	x.baseDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	x.attempt = func(ctx context.Context, app, script string) (string, error) {
		cancel()
		return "", &ScriptError{Class: ClassTransient, App: app}
	}

	_, err := x.Run(ctx, "Notes", "script")
	assert.ErrorIs(t, err, context.Canceled)
}
