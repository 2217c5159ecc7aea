package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/macbridge/internal/apps"
	"github.com/vthunder/macbridge/internal/automation"
	"github.com/vthunder/macbridge/internal/config"
	"github.com/vthunder/macbridge/internal/oplog"
	"github.com/vthunder/macbridge/internal/recovery"
	"github.com/vthunder/macbridge/internal/tools"
)

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[macbridge-mcp] ")

	// Load .env file if present (don't error if missing)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	cfg, err := config.Load(os.Getenv("MACBRIDGE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Operation log: %s (logging enabled: %v)", cfg.LogPath, cfg.LoggingEnabled)

	store := oplog.NewStore(cfg.LogPath, cfg.MaxLogSizeMB, cfg.LoggingEnabled)
	executor := automation.NewExecutor(cfg)

	notes := apps.NewNotes(executor, store)
	reminders := apps.NewReminders(executor, store)
	calendar := apps.NewCalendar(executor, store)

	// Best-effort retention pass on startup; failures must not stop
	// the server.
	if cfg.RetentionDays > 0 {
		if n, err := store.PruneOlderThan(cfg.RetentionDays); err != nil {
			log.Printf("Retention prune failed: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d log entries older than %d days", n, cfg.RetentionDays)
		}
	}

	s := server.NewMCPServer(
		"macbridge",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	tools.RegisterAll(s, &tools.Dependencies{
		Log:       store,
		Recovery:  recovery.NewManager(store, notes, reminders, calendar),
		Notes:     notes,
		Reminders: reminders,
		Calendar:  calendar,
		Contacts:  apps.NewContacts(executor),
		Messages:  apps.NewMessages(executor),
	})

	log.Println("Starting macbridge MCP server...")
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
