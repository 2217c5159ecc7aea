package automation

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/vthunder/macbridge/internal/config"
	"github.com/vthunder/macbridge/internal/logging"
)

// Runner executes one automation script against a named application
// and returns its text output. Implemented by Executor in production
// and by fakes in tests.
type Runner interface {
	Run(ctx context.Context, app, script string) (string, error)
}

// Executor runs AppleScript through osascript, retrying transient
// connection failures with a linearly increasing delay.
type Executor struct {
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxOutput  int

	// attempt runs one invocation; swapped out in tests
	attempt func(ctx context.Context, app, script string) (string, error)
}

// NewExecutor builds an executor from config.
func NewExecutor(cfg *config.Config) *Executor {
	x := &Executor{
		timeout:    time.Duration(cfg.ScriptTimeoutSec) * time.Second,
		maxRetries: cfg.MaxRetries,
		baseDelay:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		maxOutput:  cfg.MaxOutputBytes,
	}
	x.attempt = x.runOnce
	return x
}

// Run executes the script. Only transient failures are retried; all
// other classes fail on first occurrence.
func (x *Executor) Run(ctx context.Context, app, script string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= x.maxRetries; attempt++ {
		out, err := x.attempt(ctx, app, script)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == x.maxRetries {
			return "", err
		}

		delay := time.Duration(attempt) * x.baseDelay
		logging.Debug("automation", "%s attempt %d failed (%v), retrying in %s", app, attempt, err, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (x *Executor) runOnce(ctx context.Context, app, script string) (string, error) {
	runCtx := ctx
	if x.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "osascript", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classify(app, stderr.String())
	}
	if stdout.Len() > x.maxOutput {
		return "", &ScriptError{Class: ClassOutputTooLarge, App: app}
	}
	return strings.TrimSpace(stdout.String()), nil
}
