package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"sylcal/internal/gcal"
	"sylcal/internal/syllabus"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Extract a syllabus and insert its events into Google Calendar",
	Long: `Publish extracts events from a converted syllabus and inserts them into a
Google Calendar using service-account or OAuth credentials. Event ids are
derived from event content, so publishing the same document twice reports
the second run's events as existing instead of duplicating them.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

var (
	publishInputFile   string
	publishCalendarID  string
	publishCredentials string
	publishYear        int
)

func init() {
	publishCmd.Flags().StringVarP(&publishInputFile, "in", "i", "-", "Path to converted text document (- for stdin)")
	publishCmd.Flags().StringVar(&publishCalendarID, "calendar", "", "Calendar id (overrides config calendar_id)")
	publishCmd.Flags().StringVar(&publishCredentials, "credentials", "", "Credentials JSON file (overrides config credentials_file)")
	publishCmd.Flags().IntVar(&publishYear, "year", 0, "Reference year (overrides config; default current year)")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	calendarID := publishCalendarID
	if calendarID == "" {
		calendarID = cfg.CalendarID
	}
	credentials := publishCredentials
	if credentials == "" {
		credentials = cfg.CredentialsFile
	}
	if credentials == "" {
		return fmt.Errorf("credentials are required (set credentials_file, SYLCAL_CREDENTIALS_FILE or --credentials)")
	}

	resolver, err := newResolver(cfg, publishYear)
	if err != nil {
		return err
	}
	text, err := readInput(cmd.InOrStdin(), publishInputFile)
	if err != nil {
		return err
	}
	res, err := syllabus.NewExtractor(resolver).Extract(text)
	if err != nil {
		return fmt.Errorf("%s: %w", publishInputFile, err)
	}
	if noData := res.NoData(); noData != nil {
		return fmt.Errorf("%s: %w", publishInputFile, noData)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentials),
		option.WithScopes(calendar.CalendarEventsScope),
	)
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}

	out, err := gcal.Publish(ctx, gcal.NewServiceInserter(svc), calendarID, cfg.Timezone, res.Events)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "created %d, already present %d, failed %d\n", len(out.Created), len(out.Existing), len(out.Failed))
	for _, f := range out.Failed {
		fmt.Fprintf(w, "  event %d %q: %v\n", f.Index, f.Summary, f.Err)
	}
	if len(out.Failed) > 0 {
		return fmt.Errorf("%d of %d events failed to publish", len(out.Failed), len(res.Events))
	}
	return nil
}
