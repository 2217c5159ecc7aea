package apps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/macbridge/internal/automation"
	"github.com/vthunder/macbridge/internal/logging"
	"github.com/vthunder/macbridge/internal/oplog"
)

// ReminderSnapshot is the before/after payload logged for reminder
// operations.
type ReminderSnapshot struct {
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Completed bool       `json:"completed,omitempty"`
}

// Reminders drives the macOS Reminders application.
type Reminders struct {
	run automation.Runner
	log *oplog.Store
}

func NewReminders(run automation.Runner, log *oplog.Store) *Reminders {
	return &Reminders{run: run, log: log}
}

// Add creates a reminder. An empty list targets the default list.
func (r *Reminders) Add(ctx context.Context, text string, due *time.Time, list string, opts CreateOpts) (string, error) {
	props := fmt.Sprintf("{name:\"%s\"", quote(text))
	prelude := ""
	if due != nil {
		prelude = appleDate("dueDate", *due)
		props += ", due date:dueDate"
	}
	props += "}"

	var stmt string
	if list != "" {
		stmt = fmt.Sprintf(`tell list "%s"
		make new reminder with properties %s
	end tell`, quote(list), props)
	} else {
		stmt = fmt.Sprintf("make new reminder with properties %s", props)
	}
	script := fmt.Sprintf(`%stell application "Reminders"
	%s
	return "created"
end tell`, prelude, stmt)

	if _, err := r.run.Run(ctx, "Reminders", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Added reminder %q", text)
	if list != "" {
		msg += fmt.Sprintf(" to list %q", list)
	}
	if opts.SkipLog {
		return msg, nil
	}
	id := r.log.Append(oplog.KindCreate, oplog.AppReminders,
		oplog.Target{Text: text},
		oplog.Data{After: oplog.ObjectSnapshot(ReminderSnapshot{DueDate: due})},
		oplog.Metadata{Container: list})
	if id != "" {
		msg += fmt.Sprintf(" (operation %s)", id)
	}
	return msg, nil
}

// List returns the names of open reminders, optionally from one list.
func (r *Reminders) List(ctx context.Context, list string) ([]string, error) {
	scope := "reminders whose completed is false"
	if list != "" {
		scope = fmt.Sprintf("(reminders of list \"%s\" whose completed is false)", quote(list))
	}
	script := fmt.Sprintf(`tell application "Reminders"
	set out to ""
	repeat with r in %s
		set out to out & (name of r) & linefeed
	end repeat
	return out
end tell`, scope)
	out, err := r.run.Run(ctx, "Reminders", script)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Complete marks a reminder done, logging its prior state so the
// change can be undone through recovery.
func (r *Reminders) Complete(ctx context.Context, text string) (string, error) {
	due, err := r.dueDate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("reminder %q not found: %w", text, err)
	}

	script := fmt.Sprintf(`tell application "Reminders"
	set r to (first reminder whose name is "%s")
	set completed of r to true
	return "completed"
end tell`, quote(text))
	if _, err := r.run.Run(ctx, "Reminders", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Completed reminder %q", text)
	id := r.log.Append(oplog.KindUpdate, oplog.AppReminders,
		oplog.Target{Text: text},
		oplog.Data{
			Before: oplog.ObjectSnapshot(ReminderSnapshot{DueDate: due}),
			After:  oplog.ObjectSnapshot(ReminderSnapshot{DueDate: due, Completed: true}),
		},
		oplog.Metadata{})
	if id != "" {
		msg += fmt.Sprintf(" (operation %s)", id)
	}
	return msg, nil
}

// Delete removes a reminder. confirmText must match text exactly.
func (r *Reminders) Delete(ctx context.Context, text, list, confirmText string) (string, error) {
	if confirmText != text {
		return "", fmt.Errorf("confirmation mismatch: expected %q, got %q - deletion aborted", text, confirmText)
	}

	due, err := r.dueDate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("reminder %q not found: %w", text, err)
	}

	script := fmt.Sprintf(`tell application "Reminders"
	delete (first reminder whose name is "%s")
	return "deleted"
end tell`, quote(text))
	if _, err := r.run.Run(ctx, "Reminders", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Deleted reminder %q", text)
	id := r.log.Append(oplog.KindDelete, oplog.AppReminders,
		oplog.Target{Text: text},
		oplog.Data{Before: oplog.ObjectSnapshot(ReminderSnapshot{DueDate: due})},
		oplog.Metadata{Container: list, Confirmed: true})
	if id != "" {
		msg += fmt.Sprintf(" (recoverable, operation %s)", id)
	}
	logging.Info("reminders", "deleted %q", text)
	return msg, nil
}

// Reopen flips a still-existing reminder back to incomplete. Returns
// false when no reminder with that text exists anymore.
func (r *Reminders) Reopen(ctx context.Context, text string) (bool, error) {
	script := fmt.Sprintf(`tell application "Reminders"
	try
		set r to (first reminder whose name is "%s")
		set completed of r to false
		return "reopened"
	on error
		return "not found"
	end try
end tell`, quote(text))
	out, err := r.run.Run(ctx, "Reminders", script)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "reopened", nil
}

// RestoreDeleted searches any Recently Deleted list for a reminder
// with the exact text, moves it back to list and reopens it.
func (r *Reminders) RestoreDeleted(ctx context.Context, text, list string) (bool, error) {
	move := ""
	if list != "" {
		move = fmt.Sprintf("\n\t\t\t\tmove r to list \"%s\"", quote(list))
	}
	script := fmt.Sprintf(`tell application "Reminders"
	repeat with l in lists
		if name of l is "Recently Deleted" then
			repeat with r in reminders of l
				if name of r is "%s" then%s
					set completed of r to false
					return "restored"
				end if
			end repeat
		end if
	end repeat
	return "not found"
end tell`, quote(text), move)

	out, err := r.run.Run(ctx, "Reminders", script)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "restored", nil
}

// dueDate fetches a reminder's due date, nil when unset.
func (r *Reminders) dueDate(ctx context.Context, text string) (*time.Time, error) {
	script := fmt.Sprintf(`tell application "Reminders"
	set r to (first reminder whose name is "%s")
	if due date of r is missing value then
		return ""
	end if
	return (due date of r) as «class isot» as string
end tell`, quote(text))
	out, err := r.run.Run(ctx, "Reminders", script)
	if err != nil {
		return nil, err
	}
	if t, ok := parseAppleISO(out); ok {
		return &t, nil
	}
	return nil, nil
}
