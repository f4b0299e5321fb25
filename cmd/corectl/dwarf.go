package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/unwind"
)

func newDwarfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dwarf",
		Short: "Exercise the DWARF unwind table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Allocate a few synthetic FDEs and look one up",
		RunE:  runDwarfDemo,
	})
	return cmd
}

func stubCIE(cie *unwind.CIE) { cie.Version = 1 }

func runDwarfDemo(cmd *cobra.Command, args []string) error {
	capacity := 0
	if cfg != nil && cfg.DWARF.ChunkCapacity > 0 {
		capacity = cfg.DWARF.ChunkCapacity
	}
	table := unwind.NewTable(capacity, nil)

	fns := []addr.Address{0x1000, 0x2000, 0x3000}
	for _, fn := range fns {
		table.Alloc(fn, 0x100, stubCIE)
	}

	query := addr.Address(0x2080)
	fde := table.Find(query)
	if fde == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no FDE covers this address\n", query)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is covered by the FDE for %s (size %d); table holds %d live FDEs\n",
		query, fde.CodeStart, fde.CodeSize, table.Len())
	return nil
}
