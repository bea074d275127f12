package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	MaxRotatedFiles = 3
	TraceDir        = ".uiforge/data/traces"
)

// Event represents a single record in the analysis trace.
type Event struct {
	Timestamp time.Time   `json:"ts"`
	Stage     string      `json:"stage"`
	RunID     string      `json:"run_id,omitempty"`
	Data      interface{} `json:"data"`
}

// StageSummary is the closing record of a run's trace: how many events
// each pipeline stage emitted.
const StageSummary = "summary"

// Recorder manages rotating JSONL traces of analysis runs: parsed files,
// built proposals, probe snapshots and reconcile outcomes. Each run's
// trace ends with a per-stage event-count summary.
type Recorder struct {
	mu          sync.Mutex
	file        *os.File
	encoder     *json.Encoder
	basePath    string
	runID       string
	stageCounts map[string]int
}

// NewRecorder creates a recorder instance.
// It ensures the directory exists.
func NewRecorder(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = TraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{
		basePath: basePath,
	}, nil
}

// Start begins a new trace for one analysis run, sealing the previous
// run's trace first. Old files rotate so only the last N traces remain.
func (r *Recorder) Start(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealLocked()

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	filename := fmt.Sprintf("trace_%s_%d.jsonl", runID, time.Now().UnixMilli())
	path := filepath.Join(r.basePath, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	r.runID = runID
	r.stageCounts = map[string]int{}
	return nil
}

// Log writes one pipeline-stage event to the current trace file.
func (r *Recorder) Log(stage, runID string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}

	evt := Event{
		Timestamp: time.Now(),
		Stage:     stage,
		RunID:     runID,
		Data:      data,
	}

	r.stageCounts[stage]++
	_ = r.encoder.Encode(evt)
}

// sealLocked writes the run's stage-count summary and closes the file.
// Callers hold r.mu.
func (r *Recorder) sealLocked() error {
	if r.file == nil {
		return nil
	}
	if len(r.stageCounts) > 0 {
		_ = r.encoder.Encode(Event{
			Timestamp: time.Now(),
			Stage:     StageSummary,
			RunID:     r.runID,
			Data:      r.stageCounts,
		})
	}
	err := r.file.Close()
	r.file = nil
	r.encoder = nil
	r.runID = ""
	r.stageCounts = nil
	return err
}

// rotate keeps only the newest MaxRotatedFiles.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []struct {
		Name string
		Time time.Time
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, struct {
			Name string
			Time time.Time
		}{e.Name(), info.ModTime()})
	}

	// Sort newest first
	sort.Slice(traces, func(i, j int) bool {
		return traces[i].Time.After(traces[j].Time)
	})

	// Delete excess
	if len(traces) >= MaxRotatedFiles {
		// Keep N-1 to make room for the new one
		keep := MaxRotatedFiles - 1
		if keep < 0 {
			keep = 0
		}
		for i := keep; i < len(traces); i++ {
			path := filepath.Join(r.basePath, traces[i].Name)
			_ = os.Remove(path)
		}
	}
	return nil
}

// Close seals the current trace.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealLocked()
}
