package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/macbridge/internal/apps"
	"github.com/vthunder/macbridge/internal/oplog"
)

// RegisterAll registers every tool group whose backend is configured.
func RegisterAll(s *server.MCPServer, deps *Dependencies) {
	if deps.Notes != nil {
		registerNotesTools(s, deps)
	}
	if deps.Reminders != nil {
		registerRemindersTools(s, deps)
	}
	if deps.Calendar != nil {
		registerCalendarTools(s, deps)
	}
	if deps.Contacts != nil {
		registerContactsTools(s, deps)
	}
	if deps.Messages != nil {
		registerMessagesTools(s, deps)
	}
	if deps.Recovery != nil {
		registerRecoveryTools(s, deps)
	}
	if deps.Log != nil {
		registerLogTools(s, deps)
	}
}

func args(req mcp.CallToolRequest) map[string]any {
	m, _ := req.Params.Arguments.(map[string]any)
	return m
}

func strArg(a map[string]any, key string) string {
	v, _ := a[key].(string)
	return v
}

func intArg(a map[string]any, key string, def int) int {
	if v, ok := a[key].(float64); ok {
		return int(v)
	}
	return def
}

func registerNotesTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("notes_create",
		mcp.WithDescription("Create a note in Apple Notes."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Note body text")),
		mcp.WithString("folder", mcp.Description("Folder to create the note in (default folder if omitted)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		title, body := strArg(a, "title"), strArg(a, "body")
		if title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}
		msg, err := deps.Notes.Create(ctx, title, body, strArg(a, "folder"), apps.CreateOpts{})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("notes_list",
		mcp.WithDescription("List note titles, optionally scoped to a folder."),
		mcp.WithString("folder", mcp.Description("Folder to list (all notes if omitted)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		titles, err := deps.Notes.List(ctx, strArg(args(req), "folder"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(titles) == 0 {
			return mcp.NewToolResultText("No notes found"), nil
		}
		return mcp.NewToolResultText(strings.Join(titles, "\n")), nil
	})

	s.AddTool(mcp.NewTool("notes_search",
		mcp.WithDescription("Search notes by title or body text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strArg(args(req), "query")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		titles, err := deps.Notes.Search(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(titles) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No notes match %q", query)), nil
		}
		return mcp.NewToolResultText(strings.Join(titles, "\n")), nil
	})

	s.AddTool(mcp.NewTool("notes_update",
		mcp.WithDescription("Replace a note's body. The previous body is logged and recoverable."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the note to update")),
		mcp.WithString("body", mcp.Required(), mcp.Description("New body text")),
		mcp.WithString("folder", mcp.Description("Folder containing the note")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		msg, err := deps.Notes.Update(ctx, strArg(a, "title"), strArg(a, "body"), strArg(a, "folder"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("notes_delete",
		mcp.WithDescription("Delete a note. Destructive: confirm_title must repeat the title exactly. The note body is logged first so the deletion is recoverable."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the note to delete")),
		mcp.WithString("confirm_title", mcp.Required(), mcp.Description("Exact repetition of the title, as confirmation")),
		mcp.WithString("folder", mcp.Description("Folder containing the note")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		msg, err := deps.Notes.Delete(ctx, strArg(a, "title"), strArg(a, "folder"), strArg(a, "confirm_title"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})
}

func registerRemindersTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("reminders_add",
		mcp.WithDescription("Add a reminder, optionally with a due date."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Reminder text")),
		mcp.WithString("due", mcp.Description("Due date/time in RFC3339 format (optional)")),
		mcp.WithString("list", mcp.Description("List to add the reminder to (default list if omitted)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		text := strArg(a, "text")
		if text == "" {
			return mcp.NewToolResultError("text is required"), nil
		}
		var due *time.Time
		if d := strArg(a, "due"); d != "" {
			t, err := time.Parse(time.RFC3339, d)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid due date %q (want RFC3339)", d)), nil
			}
			due = &t
		}
		msg, err := deps.Reminders.Add(ctx, text, due, strArg(a, "list"), apps.CreateOpts{})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("reminders_list",
		mcp.WithDescription("List open reminders, optionally from one list."),
		mcp.WithString("list", mcp.Description("List name (all lists if omitted)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := deps.Reminders.List(ctx, strArg(args(req), "list"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(items) == 0 {
			return mcp.NewToolResultText("No open reminders"), nil
		}
		return mcp.NewToolResultText(strings.Join(items, "\n")), nil
	})

	s.AddTool(mcp.NewTool("reminders_complete",
		mcp.WithDescription("Mark a reminder as completed. Recoverable: recovery can mark it incomplete again."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Exact text of the reminder to complete")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, err := deps.Reminders.Complete(ctx, strArg(args(req), "text"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("reminders_delete",
		mcp.WithDescription("Delete a reminder. Destructive: confirm_text must repeat the text exactly."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Exact text of the reminder to delete")),
		mcp.WithString("confirm_text", mcp.Required(), mcp.Description("Exact repetition of the text, as confirmation")),
		mcp.WithString("list", mcp.Description("List containing the reminder")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		msg, err := deps.Reminders.Delete(ctx, strArg(a, "text"), strArg(a, "list"), strArg(a, "confirm_text"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})
}

func registerCalendarTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a calendar event."),
		mcp.WithString("summary", mcp.Required(), mcp.Description("Event title")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start time, RFC3339")),
		mcp.WithString("end", mcp.Required(), mcp.Description("End time, RFC3339")),
		mcp.WithString("calendar", mcp.Description("Calendar name (default: Calendar)")),
		mcp.WithString("location", mcp.Description("Event location (optional)")),
		mcp.WithString("notes", mcp.Description("Event notes (optional)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		start, err := time.Parse(time.RFC3339, strArg(a, "start"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid start %q (want RFC3339)", strArg(a, "start"))), nil
		}
		end, err := time.Parse(time.RFC3339, strArg(a, "end"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid end %q (want RFC3339)", strArg(a, "end"))), nil
		}
		msg, err := deps.Calendar.CreateEvent(ctx, strArg(a, "summary"), start, end,
			strArg(a, "calendar"), strArg(a, "location"), strArg(a, "notes"), apps.CreateOpts{})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List event summaries between two times (defaults: now to 7 days out)."),
		mcp.WithString("from", mcp.Description("Range start, RFC3339 (default now)")),
		mcp.WithString("to", mcp.Description("Range end, RFC3339 (default now+7d)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		from := time.Now()
		to := from.AddDate(0, 0, 7)
		if v := strArg(a, "from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid from %q", v)), nil
			}
			from = t
		}
		if v := strArg(a, "to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid to %q", v)), nil
			}
			to = t
		}
		events, err := deps.Calendar.List(ctx, from, to)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No events in range"), nil
		}
		return mcp.NewToolResultText(strings.Join(events, "\n")), nil
	})

	s.AddTool(mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete a calendar event. Destructive: confirm_summary must repeat the summary exactly. Dates are logged first so the event can be re-created."),
		mcp.WithString("summary", mcp.Required(), mcp.Description("Summary of the event to delete")),
		mcp.WithString("confirm_summary", mcp.Required(), mcp.Description("Exact repetition of the summary, as confirmation")),
		mcp.WithString("calendar", mcp.Description("Calendar containing the event (default: Calendar)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		msg, err := deps.Calendar.Delete(ctx, strArg(a, "summary"), strArg(a, "calendar"), strArg(a, "confirm_summary"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})
}

func registerContactsTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("contacts_search",
		mcp.WithDescription("Search contacts by name. Returns names and phone numbers."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name or partial name to search for")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := strArg(args(req), "name")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		people, err := deps.Contacts.Search(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(people) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No contacts match %q", name)), nil
		}
		return mcp.NewToolResultText(strings.Join(people, "\n")), nil
	})
}

func registerMessagesTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("messages_send",
		mcp.WithDescription("Send an iMessage."),
		mcp.WithString("recipient", mcp.Required(), mcp.Description("Phone number or email of the recipient")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		msg, err := deps.Messages.Send(ctx, strArg(a, "recipient"), strArg(a, "text"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("messages_unread",
		mcp.WithDescription("List unread incoming messages."),
		mcp.WithNumber("limit", mcp.Description("Maximum messages to return (default 20)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msgs, err := deps.Messages.Unread(ctx, intArg(args(req), "limit", 20))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(msgs) == 0 {
			return mcp.NewToolResultText("No unread messages"), nil
		}
		var b strings.Builder
		for _, m := range msgs {
			fmt.Fprintf(&b, "[%s] %s: %s\n", m.Date.Format(time.RFC3339), m.Sender, m.Text)
		}
		return mcp.NewToolResultText(b.String()), nil
	})
}

func registerRecoveryTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("recovery_list",
		mcp.WithDescription("List recoverable operations (deletions and updates that carry a pre-operation snapshot), newest first."),
		mcp.WithString("application", mcp.Description("Filter by application: notes, reminders, calendar")),
		mcp.WithString("operation", mcp.Description("Filter by operation kind: update, delete")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 50)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		entries := deps.Recovery.ListRecoverable(oplog.Filter{
			App:   oplog.App(strArg(a, "application")),
			Kind:  oplog.Kind(strArg(a, "operation")),
			Limit: intArg(a, "limit", 0),
		})
		if len(entries) == 0 {
			return mcp.NewToolResultText("No recoverable operations"), nil
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Summary())
			b.WriteByte('\n')
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	s.AddTool(mcp.NewTool("recovery_show",
		mcp.WithDescription("Show one logged operation and whether it can be recovered."),
		mcp.WithString("operation_id", mcp.Required(), mcp.Description("Operation id (or a prefix of at least 8 characters)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := strArg(args(req), "operation_id")
		detail, ok := deps.Recovery.Describe(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no logged operation matches id %q", id)), nil
		}
		out, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	})

	s.AddTool(mcp.NewTool("recovery_recover",
		mcp.WithDescription("Recover a logged deletion or update. Destructive-adjacent: confirm_operation_id must repeat operation_id exactly. Tries the application's own Recently Deleted first, then re-creates from the logged snapshot."),
		mcp.WithString("operation_id", mcp.Required(), mcp.Description("Id of the operation to recover")),
		mcp.WithString("confirm_operation_id", mcp.Required(), mcp.Description("Exact repetition of operation_id, as confirmation")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		outcome := deps.Recovery.Recover(ctx, strArg(a, "operation_id"), strArg(a, "confirm_operation_id"))
		if !outcome.Success {
			return mcp.NewToolResultError(outcome.Message), nil
		}
		msg := outcome.Message
		if outcome.NewOperationID != "" {
			msg += fmt.Sprintf(" (new operation %s)", outcome.NewOperationID)
		}
		return mcp.NewToolResultText(msg), nil
	})

	s.AddTool(mcp.NewTool("recovery_stats",
		mcp.WithDescription("Summarize the operation log: totals and recoverable counts by application and kind."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := json.MarshalIndent(deps.Recovery.Stats(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	})
}

func registerLogTools(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("oplog_recent",
		mcp.WithDescription("List the most recent logged operations, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := deps.Log.Recent(intArg(args(req), "limit", 20))
		if len(entries) == 0 {
			return mcp.NewToolResultText("Operation log is empty"), nil
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Summary())
			b.WriteByte('\n')
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	s.AddTool(mcp.NewTool("oplog_by_app",
		mcp.WithDescription("List recent logged operations for one application."),
		mcp.WithString("application", mcp.Required(), mcp.Description("Application: notes, reminders, calendar, contacts")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req)
		entries := deps.Log.ByApp(oplog.App(strArg(a, "application")), intArg(a, "limit", 20))
		if len(entries) == 0 {
			return mcp.NewToolResultText("No operations logged for that application"), nil
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Summary())
			b.WriteByte('\n')
		}
		return mcp.NewToolResultText(b.String()), nil
	})
}
