// lifectx daemon - serves the entity stores over HTTP and the change feed
// over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/api"
	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/calendar"
	"github.com/quantumlife/lifectx/internal/config"
	"github.com/quantumlife/lifectx/internal/ledger"
	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/scheduler"
)

var (
	configPath string
	host       string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "lifectxd",
		Short:        "lifectx daemon - HTTP API over your tasks, captures and social events",
		SilenceUsage: true,
		RunE:         runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default <data_dir>/config.json)")
	rootCmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg, ledger.ActorUser)
	if err != nil {
		return err
	}
	defer a.Close()

	log := logging.WithField("data_dir", cfg.DataDir)
	log.Info("stores loaded: %d tasks, %d contexts, %d events", a.Tasks.Len(), a.Contexts.Len(), a.Events.Len())

	var syncer *calendar.Syncer
	switch s, err := a.CalendarSyncer(ctx); {
	case app.IsUnauthorized(err):
		log.Warn("calendar sync enabled but not authorized, run 'lifectx calendar auth'")
	case err != nil:
		log.Warn("calendar sync unavailable: %v", err)
	default:
		syncer = s
	}

	jobs := scheduler.New()
	server := api.New(api.Config{
		Addr:        cfg.Addr(),
		Tasks:       a.Tasks,
		Contexts:    a.Contexts,
		Events:      a.Events,
		LedgerStore: a.Ledger,
		Syncer:      syncer,
		Jobs:        jobs,
	})

	if err := addJobs(jobs, cfg, server, syncer); err != nil {
		return err
	}
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logging.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := server.Stop(shutdownCtx); err != nil {
			logging.Error("shutdown: %v", err)
		}
		cancel()
	}()

	// Start server (blocks)
	return server.Start()
}

// addJobs registers the periodic jobs enabled in the config
func addJobs(jobs *scheduler.Scheduler, cfg *config.Config, server *api.Server, syncer *calendar.Syncer) error {
	if every := config.Every(cfg.Jobs.ReminderSweepMinutes); every > 0 {
		err := jobs.Add(scheduler.Job{
			Name:  "reminder-sweep",
			Every: every,
			Run: func(ctx context.Context) error {
				if n := server.AnnounceReminders(every); n > 0 {
					logging.WithField("count", n).Info("reminders due")
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
	}

	if every := config.Every(cfg.Jobs.CalendarSyncMinutes); every > 0 && syncer != nil {
		err := jobs.Add(scheduler.Job{
			Name:  "calendar-sync",
			Every: every,
			Run: func(ctx context.Context) error {
				res, err := syncer.SyncAll(ctx)
				logging.WithFields(map[string]interface{}{
					"created":  res.Created,
					"updated":  res.Updated,
					"unlinked": res.Unlinked,
					"failed":   res.Failed,
				}).Info("calendar sync")
				return err
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
