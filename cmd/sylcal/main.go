// Command sylcal turns converted course syllabi into calendar events.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sylcal/internal/config"
	appLog "sylcal/internal/log"
	"sylcal/internal/syllabus"
)

// exitNoData is the exit status for documents that yielded no events.
const exitNoData = 2

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "sylcal",
	Short:         "Syllabus to calendar converter",
	Long:          "sylcal reads syllabus documents converted to marked-up text and produces one calendar event per module row.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sylcal.yaml", "Path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(exitCode(rootCmd.Execute()))
}

// exitCode maps a command error to the process exit status: 0 on success,
// 2 when a document produced no data, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, syllabus.ErrNoData) {
		return exitNoData
	}
	return 1
}

// loadConfig loads, overrides from the environment and validates the
// config file, then applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return cfg, nil
}

// newResolver builds the date resolver from config. year overrides the
// configured reference year when non-zero.
func newResolver(cfg *config.Config, year int) (syllabus.Resolver, error) {
	loc, err := cfg.Location()
	if err != nil {
		return syllabus.Resolver{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if year == 0 {
		year = cfg.Year(time.Now())
	}
	r := syllabus.NewResolver(year, loc)
	r.StartHour = cfg.StartHour
	return r, nil
}
