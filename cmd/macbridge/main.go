// macbridge is the admin CLI over the operation log and the recovery
// manager. The MCP server itself lives in cmd/macbridge-mcp.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vthunder/macbridge/internal/apps"
	"github.com/vthunder/macbridge/internal/automation"
	"github.com/vthunder/macbridge/internal/config"
	"github.com/vthunder/macbridge/internal/oplog"
	"github.com/vthunder/macbridge/internal/recovery"
)

var configPath string

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("[macbridge] ")
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "macbridge",
		Short: "Inspect the macbridge operation log and recover deleted items",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MACBRIDGE_CONFIG"), "path to config file")

	root.AddCommand(logCmd(), recoverCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps builds the store and recovery manager the subcommands share.
func deps() (*oplog.Store, *recovery.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store := oplog.NewStore(cfg.LogPath, cfg.MaxLogSizeMB, cfg.LoggingEnabled)
	executor := automation.NewExecutor(cfg)
	mgr := recovery.NewManager(store,
		apps.NewNotes(executor, store),
		apps.NewReminders(executor, store),
		apps.NewCalendar(executor, store))
	return store, mgr, nil
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect and maintain the operation log",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent logged operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := deps()
			if err != nil {
				return err
			}
			entries := store.Recent(limit)
			if len(entries) == 0 {
				fmt.Println("operation log is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Println(e.Summary())
			}
			return nil
		},
	}
	recent.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Permanently discard log entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := deps()
			if err != nil {
				return err
			}
			n, err := store.PruneOlderThan(days)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries older than %d days\n", n, days)
			return nil
		},
	}
	prune.Flags().IntVar(&days, "days", 30, "retention window in days")

	cmd.AddCommand(recent, prune)
	return cmd
}

func recoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "List, inspect and recover logged deletions and updates",
	}

	var app, kind string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recoverable operations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := deps()
			if err != nil {
				return err
			}
			entries := mgr.ListRecoverable(oplog.Filter{
				App:   oplog.App(app),
				Kind:  oplog.Kind(kind),
				Limit: limit,
			})
			if len(entries) == 0 {
				fmt.Println("no recoverable operations")
				return nil
			}
			for _, e := range entries {
				fmt.Println(e.Summary())
			}
			return nil
		},
	}
	list.Flags().StringVar(&app, "app", "", "filter by application (notes, reminders, calendar)")
	list.Flags().StringVar(&kind, "kind", "", "filter by operation kind (update, delete)")
	list.Flags().IntVar(&limit, "limit", 0, "maximum entries (default 50)")

	show := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one logged operation and whether it can be recovered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := deps()
			if err != nil {
				return err
			}
			detail, ok := mgr.Describe(args[0])
			if !ok {
				return fmt.Errorf("no logged operation matches id %q", args[0])
			}
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <operation-id> <confirm-id>",
		Short: "Recover an operation (the id must be repeated as confirmation)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := deps()
			if err != nil {
				return err
			}
			outcome := mgr.Recover(context.Background(), args[0], args[1])
			if !outcome.Success {
				return fmt.Errorf("%s", outcome.Message)
			}
			fmt.Println(outcome.Message)
			if outcome.NewOperationID != "" {
				fmt.Printf("new operation: %s\n", outcome.NewOperationID)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, run)
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the operation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := deps()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(mgr.Stats(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
