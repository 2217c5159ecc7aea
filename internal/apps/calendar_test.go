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

func TestCalendarCreateEvent(t *testing.T) {
	run := &fakeRunner{outputs: []string{"created"}}
	log := testLog(t)
	c := NewCalendar(run, log)

	start := time.Date(2026, 9, 1, 14, 0, 0, 0, time.Local)
	end := start.Add(time.Hour)
	_, err := c.CreateEvent(context.Background(), "Standup", start, end, "Work", "Office", "", CreateOpts{})
	require.NoError(t, err)

	script := run.lastScript()
	assert.Contains(t, script, `tell calendar "Work"`)
	assert.Contains(t, script, `location:"Office"`)
	assert.Contains(t, script, "set hours of startDate to 14")

	entries := log.Query(oplog.Filter{})
	require.Len(t, entries, 1)
	assert.Equal(t, oplog.KindCreate, entries[0].Kind)
	assert.Equal(t, "Standup", entries[0].Target.Summary)
}

func TestCalendarDeleteLogsDatesForRecovery(t *testing.T) {
	// first call reads the snapshot, second deletes
	run := &fakeRunner{outputs: []string{"2026-09-01T14:00:00|2026-09-01T15:00:00|Office", "deleted"}}
	log := testLog(t)
	c := NewCalendar(run, log)

	_, err := c.Delete(context.Background(), "Standup", "Work", "Standup")
	require.NoError(t, err)

	entries := log.Query(oplog.Filter{})
	require.Len(t, entries, 1)
	require.True(t, entries[0].Recoverable())

	var snap EventSnapshot
	require.NoError(t, json.Unmarshal(entries[0].Data.Before, &snap))
	assert.Equal(t, 14, snap.StartDate.Hour())
	assert.Equal(t, 15, snap.EndDate.Hour())
	assert.Equal(t, "Work", snap.CalendarName)
	assert.Equal(t, "Office", snap.Location)
}

func TestCalendarDeleteRequiresExactConfirmation(t *testing.T) {
	run := &fakeRunner{}
	c := NewCalendar(run, testLog(t))

	_, err := c.Delete(context.Background(), "Standup", "Work", "standup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation mismatch")
	assert.Empty(t, run.scripts)
}

func TestCalendarDeleteUnparseableDatesFails(t *testing.T) {
	run := &fakeRunner{outputs: []string{"garbage"}}
	c := NewCalendar(run, testLog(t))

	_, err := c.Delete(context.Background(), "Standup", "Work", "Standup")
	require.Error(t, err)
}
