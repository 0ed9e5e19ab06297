package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "sylcal/internal/log"
	"sylcal/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP API",
	Long:  `Start an HTTP server exposing POST /api/extract and GET /health.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	resolver, err := newResolver(cfg, 0)
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"reference_year", resolver.Year,
		"start_hour", cfg.StartHour,
		"recurrence", cfg.Recurrence,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := web.NewServer(cfg, resolver).Run(ctx); err != nil {
		return err
	}
	appLog.Info("sylcal exiting")
	return nil
}
