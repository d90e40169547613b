package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "allocbench",
		Short: "Drive the page+slab allocator through scripted workloads",
		Long: "allocbench mounts a managed buffer and runs the scripted allocate/free\n" +
			"scenarios described in this repository's design notes, reporting what\n" +
			"each one observed. It is a smoke-test harness, not a throughput benchmark.",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatsCmd())
	return root
}
