package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/benchmarks"
)

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench [flags]",
	Short: "Run the workload suite and report pipeline throughput.",
	Long: `Run the built-in workload suite through the trace pipeline and
report per-workload throughput and output checks. Profiles of the run
can be written for pprof.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cpu := getString(cmd, "cpu-profile"); cpu != "" {
			f, err := os.Create(cpu)
			if err != nil {
				fail(err)
			}
			defer func() { _ = f.Close() }()

			if err := pprof.StartCPUProfile(f); err != nil {
				fail(err)
			}
			defer pprof.StopCPUProfile()
		}

		config := benchmarks.DefaultConfig()
		config.Threads = getInt(cmd, "threads")
		config.ChunkSize = getUint64(cmd, "chunk-size")
		config.Verbose = getFlag(cmd, "verbose")

		harness := benchmarks.NewHarness(config)
		if getFlag(cmd, "core") {
			harness.AddWorkloads(benchmarks.GetCoreWorkloads())
		} else {
			harness.AddWorkloads(benchmarks.GetWorkloads())
		}

		results := harness.RunAll()

		switch {
		case getFlag(cmd, "csv"):
			harness.PrintCSV(results)
		case getFlag(cmd, "json"):
			if err := harness.PrintJSON(results); err != nil {
				fail(err)
			}
		default:
			harness.PrintResults(results)
		}

		if mem := getString(cmd, "mem-profile"); mem != "" {
			f, err := os.Create(mem)
			if err != nil {
				fail(err)
			}
			defer func() { _ = f.Close() }()

			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "error writing memory profile: %v\n", err)
			}
		}

		for _, r := range results {
			if r.Error != "" || !r.OutputOK {
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	def := benchmarks.DefaultConfig()
	benchCmd.Flags().Int("threads", def.Threads, "worker count for the parallel phases")
	benchCmd.Flags().Uint64("chunk-size", def.ChunkSize, "per-segment step bound")
	benchCmd.Flags().Bool("core", false, "run the minimal validation suite only")
	benchCmd.Flags().Bool("csv", false, "print results as CSV")
	benchCmd.Flags().Bool("json", false, "print results as a JSON report")
	benchCmd.Flags().String("cpu-profile", "", "write a CPU profile to this file")
	benchCmd.Flags().String("mem-profile", "", "write a heap profile to this file")
}
