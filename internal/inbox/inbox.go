// Package inbox processes converted syllabus text files in bulk, writing a
// JSON result and an iCalendar file per document.
package inbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sylcal/internal/ics"
	appLog "sylcal/internal/log"
	"sylcal/internal/syllabus"
)

const (
	stateFile = "state.json"
	inputExt  = ".txt"
)

// ErrDuplicateName marks a document whose output name is already taken by an
// earlier document in the same batch, e.g. "a.txt" and "a.TXT".
var ErrDuplicateName = errors.New("inbox: duplicate document name")

// Outcome describes what happened to one document.
type Outcome struct {
	Name      string
	Events    int
	Skipped   int   // rows and tables skipped inside the document
	NoData    error // syllabus.ErrNoTables / ErrNoEvents, if any
	Unchanged bool  // content matched the last processed version
	Err       error
}

// stateEntry remembers the content hash a document was last processed at.
type stateEntry struct {
	SHA256      string    `json:"sha256"`
	Events      int       `json:"events"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Processor runs the extractor over many documents concurrently. Documents
// share no state, so the only coordination is the worker bound.
type Processor struct {
	Extractor *syllabus.Extractor
	Export    ics.ExportConfig
	OutputDir string
	Workers   int

	// mu serializes state file access between overlapping runs.
	mu sync.Mutex
}

// ProcessDir processes every *.txt file in dir whose content changed since
// the last run. Per-document failures are reported in the outcomes; the
// returned error is reserved for directory and state I/O and cancellation.
func (p *Processor) ProcessDir(ctx context.Context, dir string) ([]Outcome, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), inputExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return p.ProcessFiles(ctx, paths)
}

// ProcessFiles processes the given documents, skipping those whose content
// hash matches the stored state and whose outputs still exist.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string) ([]Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.OutputDir, 0o700); err != nil {
		return nil, err
	}
	state, err := p.loadState()
	if err != nil {
		appLog.Error("inbox state unreadable, reprocessing everything", err, "dir", p.OutputDir)
		state = map[string]stateEntry{}
	}

	outcomes := make([]Outcome, len(paths))
	hashes := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	owner := make(map[string]string, len(paths))
	for i, path := range paths {
		name := docName(path)
		// Outputs may land on a case-insensitive filesystem.
		key := strings.ToLower(name)
		if first, taken := owner[key]; taken {
			outcomes[i] = Outcome{Name: name, Err: fmt.Errorf("%w: %s collides with %s", ErrDuplicateName, path, first)}
			appLog.Warn("inbox duplicate document skipped", "path", path, "kept", first)
			continue
		}
		owner[key] = path

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i], hashes[i] = p.processOne(path, state)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	for i, o := range outcomes {
		if o.Err != nil || o.Unchanged || hashes[i] == "" {
			continue
		}
		state[o.Name] = stateEntry{SHA256: hashes[i], Events: o.Events, ProcessedAt: time.Now().UTC()}
	}
	if err := p.saveState(state); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// processOne reads state but never writes it, so workers can share it.
func (p *Processor) processOne(path string, state map[string]stateEntry) (Outcome, string) {
	name := docName(path)
	out := Outcome{Name: name}

	data, err := os.ReadFile(path)
	if err != nil {
		out.Err = err
		return out, ""
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if prev, ok := state[name]; ok && prev.SHA256 == hash && p.outputsExist(name) {
		out.Unchanged = true
		out.Events = prev.Events
		return out, hash
	}

	res, err := p.Extractor.Extract(string(data))
	if err != nil {
		out.Err = err
		appLog.Error("inbox extract failed", err, "document", name)
		return out, ""
	}
	out.Events = len(res.Events)
	out.Skipped = len(res.Diagnostics)
	out.NoData = res.NoData()

	if err := p.writeOutputs(name, res); err != nil {
		out.Err = err
		appLog.Error("inbox write failed", err, "document", name)
		return out, ""
	}

	appLog.Info("inbox document processed", "document", name, "events", out.Events, "skipped", out.Skipped)
	return out, hash
}

// docName is the output base name for a document path.
func docName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (p *Processor) writeOutputs(name string, res syllabus.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.OutputDir, name+".json"), data, 0o600); err != nil {
		return err
	}

	cfg := p.Export
	if cfg.Name == "" {
		cfg.Name = res.CourseTitle
	}
	cal, err := ics.Encode(res.Events, cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.OutputDir, name+".ics"), []byte(cal), 0o600)
}

func (p *Processor) outputsExist(name string) bool {
	for _, ext := range []string{".json", ".ics"} {
		if _, err := os.Stat(filepath.Join(p.OutputDir, name+ext)); err != nil {
			return false
		}
	}
	return true
}

func (p *Processor) loadState() (map[string]stateEntry, error) {
	state := map[string]stateEntry{}
	data, err := os.ReadFile(filepath.Join(p.OutputDir, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (p *Processor) saveState(state map[string]stateEntry) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.OutputDir, stateFile), data, 0o600)
}
