package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/codeindex"
	"github.com/coreruntime/corert/gcabi"
)

func newCodeIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeindex",
		Short: "Exercise the code-address index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Register a few synthetic code blocks and look one up",
		RunE:  runCodeIndexDemo,
	})
	return cmd
}

func runCodeIndexDemo(cmd *cobra.Command, args []string) error {
	sim := gcabi.NewSimulator()
	sim.Register(0x1000, 0x100)
	sim.Register(0x2000, 0x100)
	sim.Register(0x3000, 0x100)

	idx := codeindex.New(sim, nil)
	idx.Add(0x1000)
	idx.Add(0x2000)
	idx.Add(0x3000)

	query := addr.Address(0x2050)
	base, ok := idx.Find(query)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no code block found\n", query)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is inside code block starting at %s (%d blocks registered)\n", query, base, idx.Len())
	return nil
}
