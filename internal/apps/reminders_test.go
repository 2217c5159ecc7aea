package apps

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/macbridge/internal/oplog"
)

func TestRemindersAddWithDueDate(t *testing.T) {
	run := &fakeRunner{outputs: []string{"created"}}
	log := testLog(t)
	r := NewReminders(run, log)

	due := time.Date(2026, 9, 1, 9, 30, 0, 0, time.Local)
	_, err := r.Add(context.Background(), "Call dentist", &due, "Personal", CreateOpts{})
	require.NoError(t, err)

	script := run.lastScript()
	assert.Contains(t, script, "set year of dueDate to 2026")
	assert.Contains(t, script, "set month of dueDate to 9")
	assert.Contains(t, script, `tell list "Personal"`)
	assert.Contains(t, script, "due date:dueDate")

	entries := log.Query(oplog.Filter{})
	require.Len(t, entries, 1)
	assert.Equal(t, "Call dentist", entries[0].Target.Text)

	var snap ReminderSnapshot
	require.NoError(t, json.Unmarshal(entries[0].Data.After, &snap))
	require.NotNil(t, snap.DueDate)
	assert.True(t, snap.DueDate.Equal(due))
}

func TestRemindersAddWithoutDueDate(t *testing.T) {
	run := &fakeRunner{outputs: []string{"created"}}
	r := NewReminders(run, testLog(t))

	_, err := r.Add(context.Background(), "Water plants", nil, "", CreateOpts{})
	require.NoError(t, err)
	assert.NotContains(t, run.lastScript(), "due date")
}

func TestRemindersCompleteLogsPriorState(t *testing.T) {
	// first call fetches the due date, second completes
	run := &fakeRunner{outputs: []string{"", "completed"}}
	log := testLog(t)
	r := NewReminders(run, log)

	_, err := r.Complete(context.Background(), "Call dentist")
	require.NoError(t, err)

	entries := log.Query(oplog.Filter{})
	require.Len(t, entries, 1)
	assert.Equal(t, oplog.KindUpdate, entries[0].Kind)
	assert.True(t, entries[0].Recoverable(), "completion can be undone through recovery")
}

func TestRemindersDeleteRequiresExactConfirmation(t *testing.T) {
	run := &fakeRunner{}
	r := NewReminders(run, testLog(t))

	_, err := r.Delete(context.Background(), "Call dentist", "", "call Dentist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation mismatch")
	assert.Empty(t, run.scripts)
}

func TestRemindersDeleteLogsDueDate(t *testing.T) {
	run := &fakeRunner{outputs: []string{"2026-09-01T09:30:00", "deleted"}}
	log := testLog(t)
	r := NewReminders(run, log)

	_, err := r.Delete(context.Background(), "Call dentist", "Personal", "Call dentist")
	require.NoError(t, err)

	entries := log.Query(oplog.Filter{})
	require.Len(t, entries, 1)

	var snap ReminderSnapshot
	require.NoError(t, json.Unmarshal(entries[0].Data.Before, &snap))
	require.NotNil(t, snap.DueDate)
	assert.Equal(t, 2026, snap.DueDate.Year())
	assert.Equal(t, time.September, snap.DueDate.Month())
}

func TestRemindersReopen(t *testing.T) {
	run := &fakeRunner{outputs: []string{"reopened"}}
	r := NewReminders(run, testLog(t))

	ok, err := r.Reopen(context.Background(), "Call dentist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, run.lastScript(), "set completed of r to false")

	run = &fakeRunner{outputs: []string{"not found"}}
	r = NewReminders(run, testLog(t))
	ok, err = r.Reopen(context.Background(), "Call dentist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemindersRestoreDeleted(t *testing.T) {
	run := &fakeRunner{outputs: []string{"restored"}}
	r := NewReminders(run, testLog(t))

	ok, err := r.RestoreDeleted(context.Background(), "Call dentist", "Personal")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, run.lastScript(), `"Recently Deleted"`)
	assert.Contains(t, run.lastScript(), `move r to list "Personal"`)
}
