package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sylcal/internal/config"
	"sylcal/internal/syllabus"
)

const sample = "<title>CS101</title>\n<table>" +
	"Module $ Date $ Activities $ Technology $ Onsite $ Async $ Hours @\n" +
	"M1 $ Week 1 (Jan. 5-10) $ Quiz $ Zoom $ true $ false $ 2 @\n" +
	"M2 $ Week 2 (Jan. 12-17) $ Lab $ Zoom $ false $ true $ 1" +
	"</table>\n"

// execute runs the root command in-process. Flags keep their values
// between runs, so callers pass every flag they rely on.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func extractArgs(cfgPath string, extra ...string) []string {
	args := []string{"extract", "--config", cfgPath, "--in", "-", "--out", "", "--format", "json",
		"--year", "2024", "--recurrence", "", "--title", ""}
	return append(args, extra...)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, exitNoData, exitCode(syllabus.ErrNoTables))
	assert.Equal(t, exitNoData, exitCode(syllabus.ErrNoEvents))
	assert.Equal(t, 1, exitCode(syllabus.ErrEmptyInput))
}

func TestExtract_JSONToStdout(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sylcal.yaml")

	out, err := execute(t, sample, extractArgs(cfgPath)...)
	require.NoError(t, err)

	var res syllabus.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "CS101", res.CourseTitle)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "CS101 | Week 1", res.Events[0].Summary)
	assert.Equal(t, 2024, res.Events[0].StartTime.Year())

	assert.FileExists(t, cfgPath)
}

func TestExtract_ICSToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cs101.txt")
	outPath := filepath.Join(dir, "out", "cs101.ics")
	require.NoError(t, os.WriteFile(in, []byte(sample), 0o600))

	args := extractArgs(filepath.Join(dir, "sylcal.yaml"), "--in", in, "--out", outPath,
		"--format", "ics", "--recurrence", "weekly", "--title", "Override")
	_, err := execute(t, "", args...)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	cal := string(data)
	assert.Equal(t, 2, strings.Count(cal, "BEGIN:VEVENT"))
	assert.Contains(t, cal, "SUMMARY:Override | Week 1")
	assert.Contains(t, cal, "RRULE:FREQ=WEEKLY")
}

func TestExtract_NoData(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sylcal.yaml")

	out, err := execute(t, "prose only", extractArgs(cfgPath)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, syllabus.ErrNoTables)
	assert.Equal(t, exitNoData, exitCode(err))

	// The diagnostics are still written for json output.
	var res syllabus.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, syllabus.ReasonNoTables, res.Diagnostics[0].Reason)

	out, err = execute(t, "prose only", extractArgs(cfgPath, "--format", "ics")...)
	assert.ErrorIs(t, err, syllabus.ErrNoData)
	assert.Empty(t, out)
}

func TestExtract_Errors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sylcal.yaml")

	_, err := execute(t, "  ", extractArgs(cfgPath)...)
	assert.ErrorIs(t, err, syllabus.ErrEmptyInput)

	_, err = execute(t, sample, extractArgs(cfgPath, "--format", "xml")...)
	assert.Error(t, err)

	_, err = execute(t, sample, extractArgs(cfgPath, "--recurrence", "hourly")...)
	assert.Error(t, err)

	_, err = execute(t, "", extractArgs(cfgPath, "--in", filepath.Join(t.TempDir(), "missing.txt"))...)
	assert.Error(t, err)
}

func TestExtract_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sylcal.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("timezone: Mars/Olympus\n"), 0o600))

	_, err := execute(t, sample, extractArgs(cfgPath)...)
	assert.Error(t, err)
}

func TestWatchOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InboxDir = filepath.Join(dir, "inbox")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.ReferenceYear = 2024
	cfgPath := filepath.Join(dir, "sylcal.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InboxDir, "cs101.txt"), []byte(sample), 0o600))

	_, err := execute(t, "", "watch", "--config", cfgPath, "--once")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(cfg.OutputDir, "cs101.json"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "cs101.ics"))
}

func TestPublish_RequiresCredentials(t *testing.T) {
	t.Setenv("SYLCAL_CREDENTIALS_FILE", "")
	cfgPath := filepath.Join(t.TempDir(), "sylcal.yaml")

	_, err := execute(t, sample, "publish", "--config", cfgPath, "--in", "-", "--credentials", "", "--year", "2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
