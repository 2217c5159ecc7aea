package apps

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vthunder/macbridge/internal/automation"
	"github.com/vthunder/macbridge/internal/logging"
)

// appleEpoch is the Unix timestamp of 2001-01-01, the zero point of
// dates in the Messages database.
const appleEpoch = 978307200

// UnreadMessage is one unread incoming message.
type UnreadMessage struct {
	Sender string
	Text   string
	Date   time.Time
}

// Messages sends iMessages through the Messages application and reads
// incoming ones from its chat database. Messages are not domain
// objects the operation log tracks - sending cannot be undone - so
// this backend never writes audit entries.
type Messages struct {
	run    automation.Runner
	dbPath string
}

func NewMessages(run automation.Runner) *Messages {
	home, _ := os.UserHomeDir()
	return &Messages{
		run:    run,
		dbPath: filepath.Join(home, "Library", "Messages", "chat.db"),
	}
}

// Send delivers an iMessage to the recipient (phone number or email).
func (m *Messages) Send(ctx context.Context, recipient, text string) (string, error) {
	script := fmt.Sprintf(`tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant "%s" of targetService
	send "%s" to targetBuddy
	return "sent"
end tell`, quote(recipient), quote(text))
	if _, err := m.run.Run(ctx, "Messages", script); err != nil {
		return "", err
	}
	logging.Info("messages", "sent to %s: %s", recipient, logging.Truncate(text, 50))
	return fmt.Sprintf("Message sent to %s", recipient), nil
}

// Unread reads unread incoming messages straight from chat.db.
// AppleScript exposes no unread query, so this goes to the database
// the same way the Messages app itself stores them. Requires Full
// Disk Access.
func (m *Messages) Unread(ctx context.Context, limit int) ([]UnreadMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	db, err := sql.Open("sqlite", "file:"+m.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open messages database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT h.id, m.text, m.date
		FROM message m
		JOIN handle h ON m.handle_id = h.ROWID
		WHERE m.is_read = 0 AND m.is_from_me = 0 AND m.text IS NOT NULL
		ORDER BY m.date DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []UnreadMessage
	for rows.Next() {
		var msg UnreadMessage
		var date int64
		if err := rows.Scan(&msg.Sender, &msg.Text, &date); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		// date is nanoseconds since the Apple epoch
		msg.Date = time.Unix(appleEpoch+date/1e9, 0)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
