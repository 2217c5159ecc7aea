package tools

import (
	"github.com/vthunder/macbridge/internal/apps"
	"github.com/vthunder/macbridge/internal/oplog"
	"github.com/vthunder/macbridge/internal/recovery"
)

// Dependencies holds everything tool handlers need. Nil backends skip
// registration of their tool group.
type Dependencies struct {
	Log      *oplog.Store
	Recovery *recovery.Manager

	Notes     *apps.Notes
	Reminders *apps.Reminders
	Calendar  *apps.Calendar
	Contacts  *apps.Contacts
	Messages  *apps.Messages
}
