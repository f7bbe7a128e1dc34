package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/zemu/executor"
)

// Result holds the measured outcome of one workload run.
type Result struct {
	// Name identifies the workload.
	Name string `json:"name"`

	// Description explains which area the workload stresses.
	Description string `json:"description"`

	// Steps is the total instruction steps the run executed.
	Steps uint64 `json:"steps"`

	// Segments is the number of segments the planner produced.
	Segments int `json:"segments"`

	// Row counts per trace area. Known from the full-count phase on;
	// zero when the run stopped after planning.
	MainRows   uint64 `json:"main_rows"`
	ArithRows  uint64 `json:"arith_rows"`
	BinaryRows uint64 `json:"binary_rows"`
	MemRows    uint64 `json:"mem_rows"`

	// OutputOK reports whether the published outputs matched the
	// workload's expectations.
	OutputOK bool `json:"output_ok"`

	// WallTime is the actual time the run took.
	WallTime time.Duration `json:"wall_time_ns"`

	// StepsPerSec is the run's throughput.
	StepsPerSec float64 `json:"steps_per_sec"`

	// Error carries the failure, if the run aborted.
	Error string `json:"error,omitempty"`
}

// HarnessConfig configures the workload harness.
type HarnessConfig struct {
	// Threads is the worker count handed to the run configuration.
	Threads int

	// ChunkSize is the per-segment step bound.
	ChunkSize uint64

	// Phase selects how far each run goes.
	Phase string

	// Output is where to write results (default: os.Stdout).
	Output io.Writer

	// Verbose enables per-workload debug logging.
	Verbose bool
}

// DefaultConfig returns a default harness configuration: the full
// pipeline on a moderate segment size.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Threads:   8,
		ChunkSize: 1 << 14,
		Phase:     executor.PhaseExpand,
		Output:    os.Stdout,
	}
}

// Harness runs workloads through the trace pipeline and reports results.
type Harness struct {
	config    HarnessConfig
	workloads []Workload
}

// NewHarness creates a new workload harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:    config,
		workloads: []Workload{},
	}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// RunAll executes all workloads and returns results.
func (h *Harness) RunAll() []Result {
	results := make([]Result, 0, len(h.workloads))

	for _, w := range h.workloads {
		result := h.runWorkload(w)
		results = append(results, result)
	}

	return results
}

// runWorkload executes a single workload.
func (h *Harness) runWorkload(w Workload) Result {
	result := Result{
		Name:        w.Name,
		Description: w.Description,
	}

	cfg := executor.DefaultConfig()
	if h.config.Threads > 0 {
		cfg.Threads = h.config.Threads
	}
	if h.config.ChunkSize > 0 {
		cfg.ChunkSize = h.config.ChunkSize
	}
	if h.config.Phase != "" {
		cfg.Phase = h.config.Phase
	}

	x, err := executor.New(w.Program, w.Input, cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	res, err := x.Run()
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Steps = res.Plan.Total
	result.Segments = res.Plan.Segments()
	if res.Trace != nil {
		result.MainRows = uint64(len(res.Trace.Main))
		result.ArithRows = uint64(len(res.Trace.Arith))
		result.BinaryRows = uint64(len(res.Trace.Binary))
		result.MemRows = uint64(len(res.Trace.Mem))
	} else if res.Counts != nil {
		result.MainRows = res.Plan.Total
		for _, c := range res.Counts {
			result.ArithRows += c.Arith.Total()
			result.BinaryRows += c.Binary.Total()
			result.MemRows += c.Memory.Rows
		}
	}
	result.OutputOK = outputsMatch(w.ExpectedOut, res.PubOut)
	if secs := result.WallTime.Seconds(); secs > 0 {
		result.StepsPerSec = float64(result.Steps) / secs
	}

	if h.config.Verbose {
		log.Debugf("workload %s: %d steps in %v across %d segments",
			w.Name, result.Steps, result.WallTime, result.Segments)
	}

	return result
}

// outputsMatch reports whether every expected publish index carries the
// expected value. The program may publish additional indices.
func outputsMatch(want, got map[uint64]uint64) bool {
	for idx, v := range want {
		if got[idx] != v {
			return false
		}
	}
	return true
}

// PrintResults outputs workload results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Workload Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Workload: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
			_, _ = fmt.Fprintln(h.config.Output, "")
			continue
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Steps:        %d\n", r.Steps)
		_, _ = fmt.Fprintf(h.config.Output, "  Segments:     %d\n", r.Segments)
		_, _ = fmt.Fprintf(h.config.Output, "  Main Rows:    %d\n", r.MainRows)
		_, _ = fmt.Fprintf(h.config.Output, "  Arith Rows:   %d\n", r.ArithRows)
		_, _ = fmt.Fprintf(h.config.Output, "  Binary Rows:  %d\n", r.BinaryRows)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Rows:     %d\n", r.MemRows)
		_, _ = fmt.Fprintf(h.config.Output, "  Steps/sec:    %.0f\n", r.StepsPerSec)
		_, _ = fmt.Fprintf(h.config.Output, "  Output Check: %s\n", passFail(r.OutputOK))
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}

// PrintCSV outputs workload results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,steps,segments,main_rows,arith_rows,binary_rows,mem_rows,wall_ns,steps_per_sec,output_ok")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%.0f,%t\n",
			r.Name,
			r.Steps,
			r.Segments,
			r.MainRows,
			r.ArithRows,
			r.BinaryRows,
			r.MemRows,
			r.WallTime.Nanoseconds(),
			r.StepsPerSec,
			r.OutputOK,
		)
	}
}

// Report is the complete output format for a harness run.
type Report struct {
	// Metadata about the harness run.
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual workload results.
	Results []Result `json:"results"`

	// Summary contains aggregate statistics.
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the harness run.
type ReportMetadata struct {
	// Timestamp when the run started.
	Timestamp string `json:"timestamp"`

	// Config describes the harness configuration used.
	Config ReportConfig `json:"config"`
}

// ReportConfig describes the harness configuration used.
type ReportConfig struct {
	Threads   int    `json:"threads"`
	ChunkSize uint64 `json:"chunk_size"`
	Phase     string `json:"phase"`
}

// ReportSummary contains aggregate statistics across all workloads.
type ReportSummary struct {
	// TotalWorkloads is the number of workloads run.
	TotalWorkloads int `json:"total_workloads"`

	// TotalSteps is the sum of all executed steps.
	TotalSteps uint64 `json:"total_steps"`

	// TotalWallTime is the total wall clock time for all workloads.
	TotalWallTime time.Duration `json:"total_wall_time_ns"`

	// AllOutputsOK reports whether every workload passed its output check.
	AllOutputsOK bool `json:"all_outputs_ok"`
}

// PrintJSON outputs workload results in JSON format for automated
// comparison.
func (h *Harness) PrintJSON(results []Result) error {
	var totalSteps uint64
	var totalWallTime time.Duration
	allOK := true
	for _, r := range results {
		totalSteps += r.Steps
		totalWallTime += r.WallTime
		if !r.OutputOK || r.Error != "" {
			allOK = false
		}
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config: ReportConfig{
				Threads:   h.config.Threads,
				ChunkSize: h.config.ChunkSize,
				Phase:     h.config.Phase,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalWorkloads: len(results),
			TotalSteps:     totalSteps,
			TotalWallTime:  totalWallTime,
			AllOutputsOK:   allOK,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
