package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/executor"
	"github.com/sarchlab/zemu/witness"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run [flags] image_file",
	Short: "Run an image through the full trace pipeline.",
	Long: `Run a packed image through planning, counting and expansion, then
report the run totals and published outputs.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		prog, cfg := loadSetup(cmd, args[0])
		cfg.Phase = executor.PhaseExpand
		input := loadInput(cmd)

		x, err := executor.New(prog, input, cfg)
		if err != nil {
			fail(err)
		}
		res, err := x.Run()
		if err != nil {
			fail(err)
		}

		fmt.Printf("steps:    %d\n", res.Plan.Total)
		fmt.Printf("segments: %d\n", res.Plan.Segments())
		fmt.Printf("rows:     main=%d arith=%d binary=%d mem=%d\n",
			len(res.Trace.Main), len(res.Trace.Arith),
			len(res.Trace.Binary), len(res.Trace.Mem))

		if len(res.PubOut) > 0 {
			fmt.Println("outputs:")
			idxs := make([]uint64, 0, len(res.PubOut))
			for idx := range res.PubOut {
				idxs = append(idxs, idx)
			}
			sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
			for _, idx := range idxs {
				fmt.Printf("  [%d] = 0x%x\n", idx, res.PubOut[idx])
			}
		}

		if getFlag(cmd, "witness") {
			cols := witness.FromTrace(res.Trace)
			if err := cols.Validate(); err != nil {
				fail(err)
			}
			fmt.Println("witness:")
			for _, g := range cols.Groups() {
				fmt.Printf("  %-8s %3d columns x %d rows\n",
					g.Name, len(g.Cols), g.Rows)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().Bool("witness", false,
		"lower the trace into field element columns and summarize them")
}
