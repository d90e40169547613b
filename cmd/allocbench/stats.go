package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fixedalloc/fixedalloc/inspect"
	"github.com/fixedalloc/fixedalloc/page"
	"github.com/fixedalloc/fixedalloc/slab"
)

func newStatsCmd() *cobra.Command {
	var (
		asJSON  bool
		bufSize int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Mount a scratch buffer, allocate a sample workload, and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf := page.NewAlignedBuffer(bufSize)
			a := slab.NewStandalone()
			if err := a.Reinit(buf, false); err != nil {
				return err
			}

			// A representative mixed workload: a few page-sized runs at
			// both ends plus a scattering of small cells, left
			// outstanding so stats has something to show.
			if _, err := a.Malloc(4 * page.Size); err != nil {
				return err
			}
			for _, n := range []int{32, 64, 128, 512, 1024} {
				if _, err := a.Malloc(n); err != nil {
					return err
				}
			}

			slabSnap := inspect.SlabSnapshot(a)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(slabSnap)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %10s %10s %10s\n", "CELL", "SLABS", "USED", "FREE")
			for _, c := range slabSnap.Classes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10d %10d %10d %10d\n", c.CellSize, c.SlabCount, c.UsedCells, c.FreeCells)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the snapshot as JSON instead of a table")
	cmd.Flags().IntVar(&bufSize, "buffer-size", 128*1024, "size in bytes of the scratch buffer to mount (rounded up to a page multiple)")
	return cmd
}
