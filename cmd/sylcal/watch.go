package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"sylcal/internal/config"
	"sylcal/internal/ics"
	"sylcal/internal/inbox"
	appLog "sylcal/internal/log"
	"sylcal/internal/syllabus"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the inbox directory on a cron schedule",
	Long: `Watch scans inbox_dir for *.txt documents on the watch_cron schedule and
writes <name>.json and <name>.ics for each new or changed document into
output_dir.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Process the inbox once and exit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.InboxDir, 0o700); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchOnce {
		return scanInbox(ctx, cfg)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(cfg.WatchCron, func() {
		if err := scanInbox(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("inbox scan failed", err, "inbox", cfg.InboxDir)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.WatchCron, err)
	}

	appLog.Info("watching inbox", "inbox", cfg.InboxDir, "output", cfg.OutputDir, "cron", cfg.WatchCron)
	if err := scanInbox(ctx, cfg); err != nil {
		appLog.Error("initial inbox scan failed", err, "inbox", cfg.InboxDir)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("sylcal exiting")
	return nil
}

// scanInbox processes the inbox once. The reference year is resolved per
// scan so a long-running watcher follows the calendar.
func scanInbox(ctx context.Context, cfg *config.Config) error {
	resolver, err := newResolver(cfg, 0)
	if err != nil {
		return err
	}
	rec, err := ics.ParseRecurrence(cfg.Recurrence)
	if err != nil {
		return err
	}

	p := &inbox.Processor{
		Extractor: syllabus.NewExtractor(resolver),
		Export:    ics.ExportConfig{Recurrence: rec},
		OutputDir: cfg.OutputDir,
		Workers:   cfg.Workers,
	}
	outcomes, err := p.ProcessDir(ctx, cfg.InboxDir)
	if err != nil {
		return err
	}

	var failed, empty, unchanged int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Unchanged:
			unchanged++
		case o.NoData != nil:
			empty++
			appLog.Warn("document produced no events", "document", o.Name, "reason", o.NoData.Error())
		}
	}
	appLog.Info("inbox scan completed",
		"documents", len(outcomes),
		"unchanged", unchanged,
		"no_data", empty,
		"failed", failed,
	)
	return nil
}

// cronLogger routes cron's own logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
