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

// EventSnapshot is the before/after payload logged for calendar
// operations. Start and end dates are mandatory for recovery; the
// rest is best effort.
type EventSnapshot struct {
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	CalendarName string    `json:"calendarName,omitempty"`
	Location     string    `json:"location,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// Calendar drives the macOS Calendar application. Deleted events have
// no trash to restore from, so recovery always re-creates.
type Calendar struct {
	run automation.Runner
	log *oplog.Store
}

func NewCalendar(run automation.Runner, log *oplog.Store) *Calendar {
	return &Calendar{run: run, log: log}
}

// CreateEvent makes a new event in the named calendar.
func (c *Calendar) CreateEvent(ctx context.Context, summary string, start, end time.Time, calendar, location, notes string, opts CreateOpts) (string, error) {
	if calendar == "" {
		calendar = "Calendar"
	}
	props := fmt.Sprintf("{summary:\"%s\", start date:startDate, end date:endDate", quote(summary))
	if location != "" {
		props += fmt.Sprintf(", location:\"%s\"", quote(location))
	}
	if notes != "" {
		props += fmt.Sprintf(", description:\"%s\"", quote(notes))
	}
	props += "}"

	script := fmt.Sprintf(`%s%stell application "Calendar"
	tell calendar "%s"
		make new event with properties %s
	end tell
	return "created"
end tell`, appleDate("startDate", start), appleDate("endDate", end), quote(calendar), props)

	if _, err := c.run.Run(ctx, "Calendar", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Created event %q in calendar %q (%s - %s)",
		summary, calendar, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if opts.SkipLog {
		return msg, nil
	}
	id := c.log.Append(oplog.KindCreate, oplog.AppCalendar,
		oplog.Target{Summary: summary},
		oplog.Data{After: oplog.ObjectSnapshot(EventSnapshot{
			StartDate:    start,
			EndDate:      end,
			CalendarName: calendar,
			Location:     location,
			Notes:        notes,
		})},
		oplog.Metadata{Container: calendar})
	if id != "" {
		msg += fmt.Sprintf(" (operation %s)", id)
	}
	return msg, nil
}

// List returns event summaries between from and to.
func (c *Calendar) List(ctx context.Context, from, to time.Time) ([]string, error) {
	script := fmt.Sprintf(`%s%stell application "Calendar"
	set out to ""
	repeat with cal in calendars
		repeat with e in (events of cal whose start date ≥ fromDate and start date ≤ toDate)
			set out to out & (summary of e) & linefeed
		end repeat
	end repeat
	return out
end tell`, appleDate("fromDate", from), appleDate("toDate", to))
	out, err := c.run.Run(ctx, "Calendar", script)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Delete removes the first event matching summary from the named
// calendar. confirmSummary must match summary exactly. The event's
// dates and location are captured first so it can be re-created.
func (c *Calendar) Delete(ctx context.Context, summary, calendar, confirmSummary string) (string, error) {
	if confirmSummary != summary {
		return "", fmt.Errorf("confirmation mismatch: expected %q, got %q - deletion aborted", summary, confirmSummary)
	}
	if calendar == "" {
		calendar = "Calendar"
	}

	before, err := c.snapshot(ctx, summary, calendar)
	if err != nil {
		return "", fmt.Errorf("event %q not found in calendar %q: %w", summary, calendar, err)
	}

	script := fmt.Sprintf(`tell application "Calendar"
	tell calendar "%s"
		delete (first event whose summary is "%s")
	end tell
	return "deleted"
end tell`, quote(calendar), quote(summary))
	if _, err := c.run.Run(ctx, "Calendar", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Deleted event %q from calendar %q", summary, calendar)
	id := c.log.Append(oplog.KindDelete, oplog.AppCalendar,
		oplog.Target{Summary: summary},
		oplog.Data{Before: oplog.ObjectSnapshot(before)},
		oplog.Metadata{Container: calendar, Confirmed: true})
	if id != "" {
		msg += fmt.Sprintf(" (recoverable, operation %s)", id)
	}
	logging.Info("calendar", "deleted %q from %q", summary, calendar)
	return msg, nil
}

// snapshot reads an event's dates and location as pipe-separated ISO
// strings.
func (c *Calendar) snapshot(ctx context.Context, summary, calendar string) (EventSnapshot, error) {
	script := fmt.Sprintf(`tell application "Calendar"
	tell calendar "%s"
		set e to (first event whose summary is "%s")
		set startText to (start date of e) as «class isot» as string
		set endText to (end date of e) as «class isot» as string
		set locText to ""
		if location of e is not missing value then
			set locText to location of e
		end if
		return startText & "|" & endText & "|" & locText
	end tell
end tell`, quote(calendar), quote(summary))

	out, err := c.run.Run(ctx, "Calendar", script)
	if err != nil {
		return EventSnapshot{}, err
	}
	parts := strings.SplitN(out, "|", 3)
	if len(parts) < 2 {
		return EventSnapshot{}, fmt.Errorf("unexpected event data: %q", out)
	}
	start, okStart := parseAppleISO(parts[0])
	end, okEnd := parseAppleISO(parts[1])
	if !okStart || !okEnd {
		return EventSnapshot{}, fmt.Errorf("unparseable event dates: %q", out)
	}
	snap := EventSnapshot{StartDate: start, EndDate: end, CalendarName: calendar}
	if len(parts) == 3 {
		snap.Location = strings.TrimSpace(parts[2])
	}
	return snap, nil
}
