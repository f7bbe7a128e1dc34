package executor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Phase names, in pipeline order.
const (
	PhaseFastCount = "fast-count"
	PhaseFullCount = "full-count"
	PhaseExpand    = "expand"
)

// Config holds the run parameters of an execution pipeline.
type Config struct {
	// Threads is the worker-pool width for the parallel phases.
	// Default: 16.
	Threads int `json:"threads"`

	// ChunkSize is the maximum number of instruction steps per segment.
	// Default: 262144 (1 << 18).
	ChunkSize uint64 `json:"chunk_size"`

	// Phase selects how far the pipeline runs: "fast-count" stops after
	// planning, "full-count" after per-segment counting, "expand" produces
	// the full trace. Default: "expand".
	Phase string `json:"phase"`

	// HaltAddr overrides the program's halt address when nonzero.
	HaltAddr uint64 `json:"halt_addr"`

	// StrictAlign makes unaligned memory accesses fault instead of being
	// split into aligned halves. Default: false.
	StrictAlign bool `json:"strict_align"`

	// HandlerCap closes a segment early once any handler has produced
	// this many rows in it. Zero disables the bound.
	HandlerCap uint64 `json:"handler_cap"`

	// MaxSteps aborts a run whose total step count exceeds it. Zero
	// disables the bound.
	MaxSteps uint64 `json:"max_steps"`
}

// DefaultConfig returns a Config with the default run parameters.
func DefaultConfig() *Config {
	return &Config{
		Threads:   16,
		ChunkSize: 1 << 18,
		Phase:     PhaseExpand,
	}
}

// LoadConfig loads a Config from a JSON file. Absent fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("threads must be > 0")
	}
	if c.ChunkSize == 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	switch c.Phase {
	case PhaseFastCount, PhaseFullCount, PhaseExpand:
	default:
		return fmt.Errorf("phase must be %q, %q or %q",
			PhaseFastCount, PhaseFullCount, PhaseExpand)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}
