package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/loader"
)

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] image_file",
	Short: "Print the static facts of a packed image.",
	Long: `Decode a packed image without running it and print its entry
points, instruction count and a static operation histogram.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		prog, err := loader.Load(args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("entry:        0x%x\n", prog.Entry())
		fmt.Printf("halt:         0x%x\n", prog.HaltAddr())
		fmt.Printf("instructions: %d\n", prog.Len())

		hist := make([]int, insts.NumOps)
		var indirect, branches, ends int
		for _, addr := range prog.Addrs() {
			inst, _ := prog.At(addr)
			hist[inst.Op]++
			indirect += inst.IndCount()
			if inst.SetPC || inst.Jump1 != insts.InstSpacing {
				branches++
			}
			if inst.End {
				ends++
			}
		}
		fmt.Printf("branches:     %d\n", branches)
		fmt.Printf("indirections: %d\n", indirect)
		fmt.Printf("end records:  %d\n", ends)

		fmt.Println("operations:")
		for op := 0; op < insts.NumOps; op++ {
			if hist[op] == 0 {
				continue
			}
			o := insts.Op(op)
			fmt.Printf("  %-10s %-8s %6d\n", o, o.Class(), hist[op])
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
