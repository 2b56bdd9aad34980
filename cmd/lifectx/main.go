// lifectx CLI - capture context, track tasks and keep up with social
// obligations from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/config"
	"github.com/quantumlife/lifectx/internal/ledger"
)

var (
	// Config
	configPath string

	// Version
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lifectx",
		Short: "lifectx - turn captured context into tasks and social obligations",
		Long: `lifectx keeps track of what you need to do and who you owe a visit.

Screenshots, chat messages, locations, voice notes and manual notes are
captured as contexts; dates found in them feed tasks and social events
such as weddings and funerals, with gift amount suggestions.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data_dir>/config.json)")

	// Commands
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(giftCmd())
	rootCmd.AddCommand(dateCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(calendarCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp opens the configured stores for the duration of fn
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, ledger.ActorUser)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// versionCmd shows version
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show lifectx version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lifectx %s\n", version)
		},
	}
}

// configCmd shows or writes the configuration
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("Data directory: %s\n", cfg.DataDir)
			location := cfg.DBPath()
			switch cfg.Storage.Driver {
			case config.DriverFiles:
				location = cfg.CollectionsDir()
			case config.DriverMemory:
				location = "not persisted"
			}
			fmt.Printf("Storage:        %s (%s)\n", cfg.Storage.Driver, location)
			fmt.Printf("Server:         %s\n", cfg.Addr())
			fmt.Printf("Log level:      %s\n", cfg.Log.Level)
			fmt.Printf("Strict status:  %t\n", cfg.Lifecycle.Strict)
			fmt.Printf("Calendar sync:  %t (%s)\n", cfg.Calendar.Enabled, cfg.Calendar.CalendarID)
			fmt.Printf("Jobs:           sync every %dm, reminders every %dm\n", cfg.Jobs.CalendarSyncMinutes, cfg.Jobs.ReminderSweepMinutes)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Println("✅ Configuration saved")
			return nil
		},
	})

	return cmd
}

// --- Output helpers ---

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

// parseWhen accepts YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339, in local time
func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD[ HH:MM]", s)
}

// resolveID expands a unique id prefix, as printed by the list commands
func resolveID(prefix string, ids []string) (string, error) {
	var match string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = id
		}
	}
	if match == "" {
		return prefix, nil
	}
	return match, nil
}
