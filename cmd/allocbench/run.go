package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fixedalloc/fixedalloc/cmd/allocbench/internal/scenario"
)

func newRunCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scripted allocate/free scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := scenario.Names
			if only != "" {
				found := false
				for _, n := range names {
					if n == only {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("unknown scenario %q (valid: %v)", only, scenario.Names)
				}
				names = []string{only}
			}

			for _, name := range names {
				report := runOne(name)
				fmt.Fprintln(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "scenario", "", "run a single named scenario instead of all of them")
	return cmd
}

// runOne recovers from a scenario panic and turns it into a one-line
// failure report; scenarios panic on unexpected allocator errors since
// they describe invariants this repository guarantees, not conditions
// a CLI user can act on.
func runOne(name string) (report string) {
	defer func() {
		if r := recover(); r != nil {
			report = fmt.Sprintf("%s: FAILED: %v", name, r)
		}
	}()
	return scenario.Run(name)
}
