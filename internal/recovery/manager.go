package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vthunder/macbridge/internal/apps"
	"github.com/vthunder/macbridge/internal/logging"
	"github.com/vthunder/macbridge/internal/oplog"
)

// Log is the slice of the operation log store the manager consumes.
// Satisfied by *oplog.Store.
type Log interface {
	Query(oplog.Filter) []oplog.Entry
	GetByID(string) (oplog.Entry, bool)
	Append(oplog.Kind, oplog.App, oplog.Target, oplog.Data, oplog.Metadata) string
	Recent(int) []oplog.Entry
}

// NotesBackend is what Notes recovery needs from the Notes backend.
type NotesBackend interface {
	RestoreDeleted(ctx context.Context, title, folder string) (bool, error)
	Create(ctx context.Context, title, body, folder string, opts apps.CreateOpts) (string, error)
}

// RemindersBackend is what Reminders recovery needs.
type RemindersBackend interface {
	Reopen(ctx context.Context, text string) (bool, error)
	RestoreDeleted(ctx context.Context, text, list string) (bool, error)
	Add(ctx context.Context, text string, due *time.Time, list string, opts apps.CreateOpts) (string, error)
}

// CalendarBackend is what Calendar recovery needs.
type CalendarBackend interface {
	CreateEvent(ctx context.Context, summary string, start, end time.Time, calendar, location, notes string, opts apps.CreateOpts) (string, error)
}

// Outcome is the result of one recovery attempt. It is not persisted
// except through the synthetic log entry a success triggers.
type Outcome struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	NewOperationID string `json:"newOperationId,omitempty"`
}

// Detail describes one logged operation's recoverability.
type Detail struct {
	Entry      oplog.Entry `json:"entry"`
	CanRecover bool        `json:"canRecover"`
	Reason     string      `json:"reason,omitempty"`
}

// Summary aggregates the log for the stats tool. Breakdown maps count
// recoverable entries only.
type Summary struct {
	TotalOperations       int                `json:"totalOperations"`
	RecoverableOperations int                `json:"recoverableOperations"`
	ByApp                 map[oplog.App]int  `json:"byApplication"`
	ByKind                map[oplog.Kind]int `json:"byKind"`
}

// statsWindow caps how many recent entries Stats inspects.
const statsWindow = 1000

// defaultListLimit applies to ListRecoverable when no limit is given.
const defaultListLimit = 50

// Manager coordinates recovery of logged operations: native
// restoration through the application's own trash where one exists,
// re-creation from the logged snapshot otherwise. It owns no durable
// state; every request is computed fresh from the log.
type Manager struct {
	log       Log
	notes     NotesBackend
	reminders RemindersBackend
	calendar  CalendarBackend
}

func NewManager(log Log, notes NotesBackend, reminders RemindersBackend, calendar CalendarBackend) *Manager {
	return &Manager{log: log, notes: notes, reminders: reminders, calendar: calendar}
}

// ListRecoverable returns logged operations that carry a before
// snapshot, newest first.
func (m *Manager) ListRecoverable(filter oplog.Filter) []oplog.Entry {
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	var out []oplog.Entry
	for _, e := range m.log.Query(filter) {
		if e.Recoverable() {
			out = append(out, e)
		}
	}
	return out
}

// Describe reports whether the operation with the given id can be
// recovered, and why not when it cannot.
func (m *Manager) Describe(id string) (Detail, bool) {
	entry, ok := m.log.GetByID(id)
	if !ok {
		return Detail{}, false
	}
	switch {
	case entry.Kind == oplog.KindCreate:
		return Detail{Entry: entry, Reason: "cannot recover creation"}, true
	case len(entry.Data.Before) == 0:
		return Detail{Entry: entry, Reason: "no backup data"}, true
	default:
		return Detail{Entry: entry, CanRecover: true}, true
	}
}

// Recover restores the item affected by the logged operation. The
// confirmation id is compared before anything else - including any log
// lookup - so a caller who cannot echo the id back never learns what
// the log contains.
func (m *Manager) Recover(ctx context.Context, id, confirmID string) Outcome {
	if id != confirmID {
		return Outcome{
			Message: fmt.Sprintf("confirmation mismatch: operation id %q and confirmation %q must match exactly - recovery aborted", id, confirmID),
		}
	}

	detail, ok := m.Describe(id)
	if !ok {
		return Outcome{Message: fmt.Sprintf("no logged operation matches id %q", id)}
	}
	if !detail.CanRecover {
		return Outcome{Message: fmt.Sprintf("operation %s is not recoverable: %s", detail.Entry.ID, detail.Reason)}
	}

	entry := detail.Entry
	switch entry.App {
	case oplog.AppNotes:
		return m.recoverNote(ctx, entry)
	case oplog.AppReminders:
		return m.recoverReminder(ctx, entry)
	case oplog.AppCalendar:
		return m.recoverEvent(ctx, entry)
	default:
		return Outcome{Message: fmt.Sprintf("recovery not supported for this application (%s)", entry.App)}
	}
}

// recoverNote tries the Notes trash first. Moving the original back
// keeps OS-level metadata a re-created note would lose.
func (m *Manager) recoverNote(ctx context.Context, entry oplog.Entry) Outcome {
	title := entry.Target.Primary()
	folder := entry.Metadata.Container

	restored, err := m.notes.RestoreDeleted(ctx, title, folder)
	if err != nil {
		logging.Error("recovery", "native note restoration failed, falling back: %v", err)
	}
	if restored {
		return m.succeed(entry, fmt.Sprintf("Note %q recovered natively from Recently Deleted", title))
	}

	body := snapshotString(entry.Data.Before)
	if _, err := m.notes.Create(ctx, title, body, folder, apps.CreateOpts{SkipLog: true}); err != nil {
		return Outcome{Message: fmt.Sprintf("recovery of note %q failed: %v", title, err)}
	}
	return m.succeed(entry, fmt.Sprintf("Note %q re-created from logged snapshot", title))
}

// recoverReminder tries two native paths: the reminder may still exist
// (merely completed), or sit in a Recently Deleted list.
func (m *Manager) recoverReminder(ctx context.Context, entry oplog.Entry) Outcome {
	text := entry.Target.Primary()
	list := entry.Metadata.Container

	reopened, err := m.reminders.Reopen(ctx, text)
	if err != nil {
		logging.Error("recovery", "reminder reopen failed, trying trash: %v", err)
	}
	if reopened {
		return m.succeed(entry, fmt.Sprintf("Reminder %q recovered natively (marked incomplete)", text))
	}

	restored, err := m.reminders.RestoreDeleted(ctx, text, list)
	if err != nil {
		logging.Error("recovery", "native reminder restoration failed, falling back: %v", err)
	}
	if restored {
		return m.succeed(entry, fmt.Sprintf("Reminder %q recovered natively from Recently Deleted", text))
	}

	var snap struct {
		DueDate *time.Time `json:"dueDate"`
	}
	_ = json.Unmarshal(entry.Data.Before, &snap)
	if _, err := m.reminders.Add(ctx, text, snap.DueDate, list, apps.CreateOpts{SkipLog: true}); err != nil {
		return Outcome{Message: fmt.Sprintf("recovery of reminder %q failed: %v", text, err)}
	}
	return m.succeed(entry, fmt.Sprintf("Reminder %q re-created from logged snapshot", text))
}

// recoverEvent re-creates the event from its snapshot; Calendar keeps
// no trash to restore from.
func (m *Manager) recoverEvent(ctx context.Context, entry oplog.Entry) Outcome {
	summary := entry.Target.Primary()

	var snap struct {
		StartDate    time.Time `json:"startDate"`
		EndDate      time.Time `json:"endDate"`
		CalendarName string    `json:"calendarName"`
		Location     string    `json:"location"`
		Notes        string    `json:"notes"`
	}
	if err := json.Unmarshal(entry.Data.Before, &snap); err != nil || snap.StartDate.IsZero() || snap.EndDate.IsZero() {
		return Outcome{Message: fmt.Sprintf("cannot re-create event %q: logged snapshot is missing start or end date", summary)}
	}

	calendar := snap.CalendarName
	if calendar == "" {
		calendar = entry.Metadata.Container
	}
	if _, err := m.calendar.CreateEvent(ctx, summary, snap.StartDate, snap.EndDate, calendar, snap.Location, snap.Notes, apps.CreateOpts{SkipLog: true}); err != nil {
		return Outcome{Message: fmt.Sprintf("recovery of event %q failed: %v", summary, err)}
	}
	return m.succeed(entry, fmt.Sprintf("Event %q re-created in calendar %q", summary, calendar))
}

// succeed appends the synthetic create entry recording the restoration
// and builds the outcome. The entry is written only after the
// restoration work is confirmed done.
func (m *Manager) succeed(entry oplog.Entry, message string) Outcome {
	newID := m.log.Append(oplog.KindCreate, entry.App, entry.Target,
		oplog.Data{After: entry.Data.Before},
		oplog.Metadata{
			Container: entry.Metadata.Container,
			Confirmed: true,
			Actor:     oplog.CurrentUser() + " (via recovery)",
		})
	logging.Info("recovery", "recovered operation %s: %s", entry.ID, message)
	return Outcome{Success: true, Message: message, NewOperationID: newID}
}

// Stats aggregates the most recent entries, capped to bound cost on
// large logs.
func (m *Manager) Stats() Summary {
	sum := Summary{
		ByApp:  make(map[oplog.App]int),
		ByKind: make(map[oplog.Kind]int),
	}
	for _, e := range m.log.Recent(statsWindow) {
		sum.TotalOperations++
		if e.Recoverable() {
			sum.RecoverableOperations++
			sum.ByApp[e.App]++
			sum.ByKind[e.Kind]++
		}
	}
	return sum
}

// snapshotString decodes a snapshot logged as a JSON string; anything
// else is returned as raw text.
func snapshotString(snap oplog.Snapshot) string {
	var s string
	if err := json.Unmarshal(snap, &s); err == nil {
		return s
	}
	return string(snap)
}
