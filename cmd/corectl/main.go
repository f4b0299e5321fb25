// Command corectl is the operational CLI for the runtime core: it
// runs small demos that look up one address in a synthetic code index
// and in a synthetic DWARF unwind table, replays a UThread round-robin
// demo, and offers a REPL that runs those demos by name.
//
// Grounded on cmd/viewcore/main.go's flag-driven command dispatch,
// generalized to a cobra command tree the way objref.go already
// pulls in cobra for one subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coreruntime/corert/config"
)

var (
	configPath string
	cfg        *config.Config
	log        = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "corectl",
		Short: "Inspect and exercise the corert runtime core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "corert.toml", "path to the corert configuration file")

	root.AddCommand(newCodeIndexCmd())
	root.AddCommand(newDwarfCmd())
	root.AddCommand(newUThreadCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
