package apps

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vthunder/macbridge/internal/oplog"
)

// fakeRunner replays canned responses and records every script it was
// asked to run.
type fakeRunner struct {
	outputs []string
	errs    []error
	scripts []string
	apps    []string
}

func (f *fakeRunner) Run(_ context.Context, app, script string) (string, error) {
	f.scripts = append(f.scripts, script)
	f.apps = append(f.apps, app)
	i := len(f.scripts) - 1
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func (f *fakeRunner) lastScript() string {
	if len(f.scripts) == 0 {
		return ""
	}
	return f.scripts[len(f.scripts)-1]
}

func testLog(t *testing.T) *oplog.Store {
	t.Helper()
	return oplog.NewStore(filepath.Join(t.TempDir(), "operations.jsonl"), 10, true)
}
