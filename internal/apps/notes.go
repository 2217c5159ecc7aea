package apps

import (
	"context"
	"fmt"
	"strings"

	"github.com/vthunder/macbridge/internal/automation"
	"github.com/vthunder/macbridge/internal/logging"
	"github.com/vthunder/macbridge/internal/oplog"
)

// Notes drives the macOS Notes application.
type Notes struct {
	run automation.Runner
	log *oplog.Store
}

func NewNotes(run automation.Runner, log *oplog.Store) *Notes {
	return &Notes{run: run, log: log}
}

// Create makes a new note. An empty folder targets the default folder.
func (n *Notes) Create(ctx context.Context, title, body, folder string, opts CreateOpts) (string, error) {
	var target string
	if folder != "" {
		target = fmt.Sprintf(" at folder \"%s\"", quote(folder))
	}
	script := fmt.Sprintf(`tell application "Notes"
	make new note%s with properties {name:"%s", body:"%s"}
	return "created"
end tell`, target, quote(title), quote(body))

	if _, err := n.run.Run(ctx, "Notes", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Created note %q", title)
	if folder != "" {
		msg += fmt.Sprintf(" in folder %q", folder)
	}
	if opts.SkipLog {
		return msg, nil
	}
	id := n.log.Append(oplog.KindCreate, oplog.AppNotes,
		oplog.Target{Title: title},
		oplog.Data{After: oplog.StringSnapshot(body)},
		oplog.Metadata{Container: folder})
	if id != "" {
		msg += fmt.Sprintf(" (operation %s)", id)
	}
	return msg, nil
}

// Get returns the body of the first note with the given title.
func (n *Notes) Get(ctx context.Context, title, folder string) (string, error) {
	script := fmt.Sprintf(`tell application "Notes"
	set theNote to %s
	return body of theNote
end tell`, noteRef(title, folder))
	return n.run.Run(ctx, "Notes", script)
}

// List returns the titles of all notes, optionally scoped to a folder.
func (n *Notes) List(ctx context.Context, folder string) ([]string, error) {
	scope := "notes"
	if folder != "" {
		scope = fmt.Sprintf("notes of folder \"%s\"", quote(folder))
	}
	script := fmt.Sprintf(`tell application "Notes"
	set out to ""
	repeat with n in %s
		set out to out & (name of n) & linefeed
	end repeat
	return out
end tell`, scope)
	out, err := n.run.Run(ctx, "Notes", script)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Search returns titles of notes whose name or body contains text.
func (n *Notes) Search(ctx context.Context, text string) ([]string, error) {
	script := fmt.Sprintf(`tell application "Notes"
	set out to ""
	repeat with n in (notes whose name contains "%s" or body contains "%s")
		set out to out & (name of n) & linefeed
	end repeat
	return out
end tell`, quote(text), quote(text))
	out, err := n.run.Run(ctx, "Notes", script)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Update replaces a note's body, logging the previous body so the
// change can be recovered.
func (n *Notes) Update(ctx context.Context, title, newBody, folder string) (string, error) {
	before, err := n.Get(ctx, title, folder)
	if err != nil {
		return "", fmt.Errorf("note %q not found: %w", title, err)
	}

	script := fmt.Sprintf(`tell application "Notes"
	set theNote to %s
	set body of theNote to "%s"
	return "updated"
end tell`, noteRef(title, folder), quote(newBody))
	if _, err := n.run.Run(ctx, "Notes", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Updated note %q", title)
	id := n.log.Append(oplog.KindUpdate, oplog.AppNotes,
		oplog.Target{Title: title},
		oplog.Data{Before: oplog.StringSnapshot(before), After: oplog.StringSnapshot(newBody)},
		oplog.Metadata{Container: folder})
	if id != "" {
		msg += fmt.Sprintf(" (operation %s)", id)
	}
	return msg, nil
}

// Delete removes a note. confirmTitle must match title exactly; the
// note's body is captured first so the deletion is recoverable.
func (n *Notes) Delete(ctx context.Context, title, folder, confirmTitle string) (string, error) {
	if confirmTitle != title {
		return "", fmt.Errorf("confirmation mismatch: expected %q, got %q - deletion aborted", title, confirmTitle)
	}

	before, err := n.Get(ctx, title, folder)
	if err != nil {
		return "", fmt.Errorf("note %q not found: %w", title, err)
	}

	script := fmt.Sprintf(`tell application "Notes"
	delete %s
	return "deleted"
end tell`, noteRef(title, folder))
	if _, err := n.run.Run(ctx, "Notes", script); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Deleted note %q", title)
	id := n.log.Append(oplog.KindDelete, oplog.AppNotes,
		oplog.Target{Title: title},
		oplog.Data{Before: oplog.StringSnapshot(before)},
		oplog.Metadata{Container: folder, Confirmed: true})
	if id != "" {
		msg += fmt.Sprintf(" (recoverable, operation %s)", id)
	}
	logging.Info("notes", "deleted %q from %q", title, folder)
	return msg, nil
}

// RestoreDeleted searches every account's Recently Deleted folder for
// a note with the exact title and moves it back into folder. The
// destination folder must already exist. Returns false when no match
// was found in any trash folder.
func (n *Notes) RestoreDeleted(ctx context.Context, title, folder string) (bool, error) {
	dest := `default folder`
	if folder != "" {
		dest = fmt.Sprintf("folder \"%s\"", quote(folder))
	}
	script := fmt.Sprintf(`tell application "Notes"
	repeat with acct in accounts
		try
			set trashFolder to folder "Recently Deleted" of acct
			repeat with n in notes of trashFolder
				if name of n is "%s" then
					move n to %s
					return "restored"
				end if
			end repeat
		end try
	end repeat
	return "not found"
end tell`, quote(title), dest)

	out, err := n.run.Run(ctx, "Notes", script)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "restored", nil
}

func noteRef(title, folder string) string {
	if folder != "" {
		return fmt.Sprintf("first note of folder \"%s\" whose name is \"%s\"", quote(folder), quote(title))
	}
	return fmt.Sprintf("first note whose name is \"%s\"", quote(title))
}
