package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/coreruntime/corert/config"
	"github.com/coreruntime/corert/uthread"
)

func newUThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uthread",
		Short: "Exercise the cooperative UThread scheduler",
	}
	var count int
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Spawn a few UThreads and replay their round-robin interleaving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUThreadDemo(cmd, count)
		},
	}
	demo.Flags().IntVar(&count, "count", 3, "number of UThreads to spawn")
	cmd.AddCommand(demo)
	return cmd
}

func runUThreadDemo(cmd *cobra.Command, count int) error {
	uc := config.UThread{StackBytes: 64 * 1024, GuardPages: 1}
	if cfg != nil {
		uc = cfg.UThread
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	print := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	done := make(chan struct{})
	go func() {
		sched := uthread.NewScheduler(uc, nil)
		sched.Pin()

		for i := 0; i < count; i++ {
			id := i
			if _, err := sched.Spawn(func() {
				print("uthread %d: step 1\n", id)
				sched.Leave()
				print("uthread %d: step 2\n", id)
			}); err != nil {
				print("uthread %d: failed to spawn: %v\n", id, err)
			}
		}

		for sched.Any() {
			sched.Leave()
		}
		close(done)
	}()
	<-done
	return nil
}
