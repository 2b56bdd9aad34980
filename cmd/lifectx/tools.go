package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/calendar"
	"github.com/quantumlife/lifectx/internal/config"
	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/dateparse"
	"github.com/quantumlife/lifectx/internal/gift"
	"github.com/quantumlife/lifectx/internal/ledger"
	"github.com/quantumlife/lifectx/internal/reminders"
)

// giftCmd evaluates the gift table
func giftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gift [event-type] [relationship]",
		Short: "Suggest a gift amount for an event type and relationship",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			relationship := ""
			if len(args) == 2 {
				relationship = args[1]
			}
			fmt.Println(gift.Recommend(core.EventType(args[0]), relationship))
		},
	}
}

// dateCmd runs the date extractor
func dateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "date [text]",
		Short: "Find a date in text (YYYY-MM-DD, M월 D일 or 내일)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := dateparse.ParseNow(strings.Join(args, " "))
			if !ok {
				fmt.Println("No date found.")
				return nil
			}
			fmt.Printf("%s (%q, confidence %.2f)\n", res.ISODate, res.RawText, res.Confidence)
			return nil
		},
	}
}

// remindersCmd lists upcoming alerts
func remindersCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List reminders and deadlines coming up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				due := reminders.Due(a.Tasks.List(), a.Events.List(), time.Now(), window)
				if len(due) == 0 {
					fmt.Println("Nothing coming up.")
					return nil
				}
				w := newTable()
				fmt.Fprintln(w, "WHEN\tKIND\tID\tTITLE")
				for _, in := range due {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatTime(&in.At), in.Kind, shortID(in.EntityID), truncate(in.Title, 50))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().DurationVarP(&window, "window", "w", 7*24*time.Hour, "how far ahead to look")
	return cmd
}

// ledgerCmd inspects the audit ledger
func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the audit ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Verify the ledger hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(ctx context.Context, l *ledger.Store) error {
				summary, err := l.Summarize(ctx)
				if err != nil {
					return err
				}
				if !summary.ChainValid {
					return fmt.Errorf("❌ ledger chain invalid: %s", summary.ChainError)
				}
				fmt.Printf("✅ Ledger chain valid (%d entries)\n", summary.TotalEntries)
				return nil
			})
		},
	})

	var limit int
	log := &cobra.Command{
		Use:   "log",
		Short: "Show recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(ctx context.Context, l *ledger.Store) error {
				entries, err := l.Query(ctx, ledger.QueryOptions{Limit: limit})
				if err != nil {
					return err
				}
				w := newTable()
				fmt.Fprintln(w, "WHEN\tACTION\tACTOR\tENTITY")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatTime(&e.Timestamp), e.Action, e.Actor, shortID(e.EntityID))
				}
				return w.Flush()
			})
		},
	}
	log.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.AddCommand(log)

	return cmd
}

func withLedger(fn func(ctx context.Context, l *ledger.Store) error) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if a.Ledger == nil {
			return errors.New("the ledger needs a SQLite storage driver")
		}
		return fn(ctx, a.Ledger)
	})
}

// calendarCmd connects and syncs Google Calendar
func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Sync social events to Google Calendar",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Calendar.ClientID == "" {
				return errors.New("set LIFECTX_CALENDAR_CLIENT_ID and LIFECTX_CALENDAR_CLIENT_SECRET first")
			}

			oauth := calendar.NewOAuthClient(calendar.OAuthConfigFrom(cfg.Calendar))
			token, err := oauth.Authorize(context.Background(), func(url string) {
				fmt.Println("🔗 Open this URL in your browser to authorize lifectx:")
				fmt.Println()
				fmt.Println("   " + url)
				fmt.Println()
				fmt.Println("⏳ Waiting for authorization...")
			})
			if err != nil {
				return err
			}
			if err := calendar.SaveToken(cfg.TokenPath(), token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Println("✅ Google Calendar connected")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Push every social event to the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				syncer, err := a.CalendarSyncer(ctx)
				if app.IsUnauthorized(err) {
					return errors.New("calendar not authorized, run 'lifectx calendar auth'")
				}
				if err != nil {
					return err
				}
				if syncer == nil {
					return errors.New("calendar sync is disabled, set calendar.enabled in the config")
				}

				res, err := syncer.SyncAll(ctx)
				fmt.Printf("📅 created %d, updated %d, unlinked %d, failed %d\n",
					res.Created, res.Updated, res.Unlinked, res.Failed)
				return err
			})
		},
	})

	return cmd
}
