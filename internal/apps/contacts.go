package apps

import (
	"context"
	"fmt"

	"github.com/vthunder/macbridge/internal/automation"
)

// Contacts reads the macOS Contacts application. All operations are
// read-only, so nothing here touches the operation log.
type Contacts struct {
	run automation.Runner
}

func NewContacts(run automation.Runner) *Contacts {
	return &Contacts{run: run}
}

// Search returns "name: phones" lines for people whose name contains
// the query.
func (c *Contacts) Search(ctx context.Context, name string) ([]string, error) {
	script := fmt.Sprintf(`tell application "Contacts"
	set out to ""
	repeat with p in (people whose name contains "%s")
		set phoneText to ""
		repeat with ph in phones of p
			set phoneText to phoneText & (value of ph) & " "
		end repeat
		set out to out & (name of p) & ": " & phoneText & linefeed
	end repeat
	return out
end tell`, quote(name))
	out, err := c.run.Run(ctx, "Contacts", script)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Get returns full details for the first exact name match.
func (c *Contacts) Get(ctx context.Context, name string) (string, error) {
	script := fmt.Sprintf(`tell application "Contacts"
	set p to (first person whose name is "%s")
	set out to (name of p) & linefeed
	repeat with ph in phones of p
		set out to out & "phone: " & (value of ph) & linefeed
	end repeat
	repeat with em in emails of p
		set out to out & "email: " & (value of em) & linefeed
	end repeat
	return out
end tell`, quote(name))
	return c.run.Run(ctx, "Contacts", script)
}
