package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/executor"
)

// countCmd represents the count command.
var countCmd = &cobra.Command{
	Use:   "count [flags] image_file",
	Short: "Plan a run and report per-segment operation counts.",
	Long: `Run the planning and counting phases only, then print one line per
segment with its step and handler row tallies. The counts predict the
exact trace sizes expansion would produce.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		prog, cfg := loadSetup(cmd, args[0])
		cfg.Phase = executor.PhaseFullCount
		input := loadInput(cmd)

		x, err := executor.New(prog, input, cfg)
		if err != nil {
			fail(err)
		}
		res, err := x.Run()
		if err != nil {
			fail(err)
		}

		fmt.Printf("%-8s %10s %10s %10s %10s %10s\n",
			"segment", "steps", "arith", "binary", "mem", "rom")

		var arith, binary, mem, rom uint64
		for i, c := range res.Counts {
			fmt.Printf("%-8d %10d %10d %10d %10d %10d\n",
				i, res.Plan.Steps[i], c.Arith.Total(), c.Binary.Total(),
				c.Memory.Rows, c.Rom)
			arith += c.Arith.Total()
			binary += c.Binary.Total()
			mem += c.Memory.Rows
			rom += c.Rom
		}

		fmt.Printf("%-8s %10d %10d %10d %10d %10d\n",
			"total", res.Plan.Total, arith, binary, mem, rom)
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	addRunFlags(countCmd)
}
