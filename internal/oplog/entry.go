package oplog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a logged operation did
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// App identifies which application an operation targeted
type App string

const (
	AppNotes     App = "notes"
	AppReminders App = "reminders"
	AppCalendar  App = "calendar"
	AppContacts  App = "contacts"
)

// Target identifies the affected item. Exactly one field is set,
// depending on the application (notes use Title, reminders Text,
// calendar events Summary, contacts Name).
type Target struct {
	Title   string `json:"title,omitempty"`
	Text    string `json:"text,omitempty"`
	Summary string `json:"summary,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Primary returns whichever identifying field is set.
func (t Target) Primary() string {
	switch {
	case t.Title != "":
		return t.Title
	case t.Text != "":
		return t.Text
	case t.Summary != "":
		return t.Summary
	default:
		return t.Name
	}
}

// Snapshot is an opaque, application-specific item payload. The log
// never looks inside it; only recovery decodes it, per application.
type Snapshot = json.RawMessage

// StringSnapshot wraps plain text (e.g. a note body) as a snapshot.
func StringSnapshot(s string) Snapshot {
	data, _ := json.Marshal(s)
	return data
}

// ObjectSnapshot marshals a structured payload as a snapshot.
func ObjectSnapshot(v any) Snapshot {
	data, _ := json.Marshal(v)
	return data
}

// Data carries the item state around an operation. Before is absent
// for creates; After may be absent for deletes.
type Data struct {
	Before Snapshot `json:"before,omitempty"`
	After  Snapshot `json:"after,omitempty"`
}

// Metadata carries operation context
type Metadata struct {
	Container string `json:"container,omitempty"` // folder / list / calendar name
	Confirmed bool   `json:"confirmed"`
	Actor     string `json:"actor,omitempty"`
}

// Entry is one durable record of a mutating operation. Entries are
// never modified after append.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"operation"`
	App       App       `json:"application"`
	Target    Target    `json:"target"`
	Data      Data      `json:"data"`
	Metadata  Metadata  `json:"metadata"`
}

// Recoverable reports whether this entry can be recovered: it must
// carry a before snapshot and not be a creation.
func (e Entry) Recoverable() bool {
	return len(e.Data.Before) > 0 && e.Kind != KindCreate
}

// Summary renders a one-line human-readable description, used by the
// MCP tools and the admin CLI.
func (e Entry) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s %q", e.Timestamp.Format(time.RFC3339), e.Kind, e.App, e.Target.Primary())
	if e.Metadata.Container != "" {
		fmt.Fprintf(&b, " in %q", e.Metadata.Container)
	}
	fmt.Fprintf(&b, " (id: %s)", e.ID)
	return b.String()
}

// Filter selects entries in Store.Query. Zero values match everything.
type Filter struct {
	Kind  Kind
	App   App
	Since time.Time
	Limit int
}

func (f Filter) matches(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.App != "" && e.App != f.App {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
