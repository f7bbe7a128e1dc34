// Package main provides the entry point for zemu.
// zemu is a deterministic segmented trace generator for zero-knowledge
// proving pipelines.
//
// For the full CLI, use: go run ./cmd/zemu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("zemu - segmented trace generator")
	fmt.Println("")
	fmt.Println("Usage: zemu <command> [options] <image>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run      Run an image through the full trace pipeline")
	fmt.Println("  count    Plan a run and report per-segment operation counts")
	fmt.Println("  stats    Report trace area costs and memory locality")
	fmt.Println("  bench    Run the workload suite and report throughput")
	fmt.Println("  inspect  Print the static facts of a packed image")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/zemu' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/zemu' instead.")
	}
}
