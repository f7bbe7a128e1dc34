package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/executor"
	"github.com/sarchlab/zemu/stats"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats [flags] image_file",
	Short: "Run an image and report trace area costs and memory locality.",
	Long: `Run the full pipeline and price the resulting trace with the area
cost model, including an operation histogram and a cache locality
estimate for the memory traffic.`,
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

		loc := stats.LocalityConfig{
			Size:          getInt(cmd, "cache-size"),
			Associativity: getInt(cmd, "cache-ways"),
			BlockSize:     getInt(cmd, "cache-line"),
		}
		report := stats.FromSetWith(res.Trace, stats.DefaultCostModel(), loc)
		report.Render(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addRunFlags(statsCmd)

	loc := stats.DefaultLocalityConfig()
	statsCmd.Flags().Int("cache-size", loc.Size, "modeled data cache size in bytes")
	statsCmd.Flags().Int("cache-ways", loc.Associativity, "modeled cache associativity")
	statsCmd.Flags().Int("cache-line", loc.BlockSize, "modeled cache line size in bytes")
}
