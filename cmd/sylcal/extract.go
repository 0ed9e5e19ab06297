package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sylcal/internal/ics"
	appLog "sylcal/internal/log"
	"sylcal/internal/syllabus"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract calendar events from one converted syllabus",
	Long: `Extract reads a converted syllabus text document and writes its events
as JSON (with skip diagnostics) or as an iCalendar file. Exits with status 2
when the document contains no tables or no usable rows.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

var (
	extractInputFile  string
	extractOutputFile string
	extractFormat     string
	extractYear       int
	extractRecurrence string
	extractTitle      string
)

func init() {
	extractCmd.Flags().StringVarP(&extractInputFile, "in", "i", "-", "Path to converted text document (- for stdin)")
	extractCmd.Flags().StringVarP(&extractOutputFile, "out", "o", "", "Path to output file (default stdout)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "Output format: json or ics")
	extractCmd.Flags().IntVar(&extractYear, "year", 0, "Reference year (overrides config; default current year)")
	extractCmd.Flags().StringVar(&extractRecurrence, "recurrence", "", "Repeat events across their week range: none, daily, weekly (overrides config)")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Course title to use instead of the document's <title>")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if extractFormat != "json" && extractFormat != "ics" {
		return fmt.Errorf("--format must be json or ics, got %q", extractFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	recParam := extractRecurrence
	if recParam == "" {
		recParam = cfg.Recurrence
	}
	rec, err := ics.ParseRecurrence(recParam)
	if err != nil {
		return err
	}

	resolver, err := newResolver(cfg, extractYear)
	if err != nil {
		return err
	}

	text, err := readInput(cmd.InOrStdin(), extractInputFile)
	if err != nil {
		return err
	}

	x := syllabus.NewExtractor(resolver)
	if title := strings.TrimSpace(extractTitle); title != "" {
		x.Title = func(string) string { return title }
	}

	res, err := x.Extract(text)
	if err != nil {
		return fmt.Errorf("%s: %w", extractInputFile, err)
	}
	for _, d := range res.Diagnostics {
		appLog.Warn("skipped", "input", extractInputFile, "diagnostic", d.String())
	}

	noData := res.NoData()
	if noData != nil && extractFormat == "ics" {
		return fmt.Errorf("%s: %w", extractInputFile, noData)
	}

	var out []byte
	switch extractFormat {
	case "ics":
		cal, err := ics.Encode(res.Events, ics.ExportConfig{Name: res.CourseTitle, Recurrence: rec})
		if err != nil {
			return fmt.Errorf("encode calendar: %w", err)
		}
		out = []byte(cal)
	default:
		out, err = json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		out = append(out, '\n')
	}

	if err := writeOutput(cmd.OutOrStdout(), extractOutputFile, out); err != nil {
		return err
	}
	if noData != nil {
		return fmt.Errorf("%s: %w", extractInputFile, noData)
	}
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
