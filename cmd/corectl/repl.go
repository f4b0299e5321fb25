package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Open an interactive shell over the runtime-core demos",
		RunE:  runRepl,
	}
}

// runRepl drives a tiny interactive shell: each line is dispatched to
// one of the demo subcommands above, so the same code paths exercised
// by `corectl codeindex demo` etc. are reachable without re-invoking
// the process. Falls back to a plain stdin scanner when stdout isn't
// a terminal (e.g. piped input in scripts or CI).
func runRepl(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runReplPlain(cmd)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "corert> ",
		HistoryFile: "",
	})
	if err != nil {
		return fmt.Errorf("repl: opening terminal: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if dispatch(cmd, line) {
			return nil
		}
	}
}

func runReplPlain(cmd *cobra.Command) error {
	var line string
	for {
		fmt.Fprint(cmd.OutOrStdout(), "corert> ")
		n, err := fmt.Fscanln(cmd.InOrStdin(), &line)
		if n == 0 || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if dispatch(cmd, line) {
			return nil
		}
	}
}

// dispatch runs one REPL line and reports whether the REPL should exit.
func dispatch(cmd *cobra.Command, line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit":
		return true
	case "":
		return false
	case "codeindex":
		if err := runCodeIndexDemo(cmd, nil); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), err)
		}
	case "dwarf":
		if err := runDwarfDemo(cmd, nil); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), err)
		}
	case "uthread":
		if err := runUThreadDemo(cmd, 3); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), err)
		}
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "unknown command %q (try codeindex, dwarf, uthread, exit)\n", line)
	}
	return false
}
