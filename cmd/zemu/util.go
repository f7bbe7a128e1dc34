package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/executor"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/loader"
)

// Get an expected bool flag, or exit if an error arises.
func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// Get an expected string flag, or exit if an error arises.
func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// Get an expected int flag, or exit if an error arises.
func getInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// Get an expected uint64 flag, or exit if an error arises.
func getUint64(cmd *cobra.Command, flag string) uint64 {
	r, err := cmd.Flags().GetUint64(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// fail reports a fatal error and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// addRunFlags registers the run configuration flags shared by the executing
// subcommands.
func addRunFlags(cmd *cobra.Command) {
	def := executor.DefaultConfig()
	cmd.Flags().Int("threads", def.Threads, "worker count for the parallel phases")
	cmd.Flags().Uint64("chunk-size", def.ChunkSize, "per-segment step bound")
	cmd.Flags().Uint64("max-steps", 0, "abort runs exceeding this step count (0 = unbounded)")
	cmd.Flags().Bool("strict-align", false, "fault on unaligned memory traffic instead of splitting")
	cmd.Flags().String("input", "", "path to the input payload file")
}

// loadSetup reads the packed image at imagePath and assembles the run
// configuration from the config file and command line. Flags set explicitly
// on the command line win over the file.
func loadSetup(cmd *cobra.Command, imagePath string) (*insts.Program, *executor.Config) {
	prog, err := loader.Load(imagePath)
	if err != nil {
		fail(err)
	}

	cfg := executor.DefaultConfig()
	if path := getString(cmd, "config"); path != "" {
		cfg, err = executor.LoadConfig(path)
		if err != nil {
			fail(err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Threads = getInt(cmd, "threads")
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = getUint64(cmd, "chunk-size")
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = getUint64(cmd, "max-steps")
	}
	if flags.Changed("strict-align") {
		cfg.StrictAlign = getFlag(cmd, "strict-align")
	}

	return prog, cfg
}

// loadInput reads the input payload named by the input flag, if any.
func loadInput(cmd *cobra.Command) []byte {
	path := getString(cmd, "input")
	if path == "" {
		return nil
	}

	data, err := loader.LoadInput(path)
	if err != nil {
		fail(err)
	}

	return data
}
