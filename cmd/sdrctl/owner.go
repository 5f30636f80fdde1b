package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/internal/logger"
	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/tx"
)

func init() {
	rootCmd.AddCommand(newOwnerCmd(), newUnlockCmd())
}

func newOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owner <name>",
		Short: "Show the transaction owner recorded in a heap file",
		Long: `The owner command reads the owner fields of the heap map without
loading the heap, so it does not wait for or disturb a running transaction.

Example:
  sdrctl owner orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOwner(args)
		},
	}
}

type ownerInfo struct {
	Task   int    `json:"task"`
	Thread string `json:"thread"`
	Depth  int    `json:"depth"`
	Alive  bool   `json:"alive"`
}

func runOwner(args []string) error {
	p, err := profileFor(args[0], false)
	if err != nil {
		return err
	}
	o, depth, err := sdr.ReadOwner(p.HeapPath())
	if err != nil {
		return err
	}
	if jsonOut {
		if o.IsZero() {
			return printJSON(nil)
		}
		return printJSON(ownerInfo{Task: o.Task, Thread: o.Thread.String(), Depth: depth, Alive: tx.Alive(o.Task)})
	}
	if o.IsZero() {
		printInfo("%s: no transaction in progress\n", p.Name)
		return nil
	}
	state := warnStyle.Render("running")
	if !tx.Alive(o.Task) {
		state = mutedStyle.Render("gone")
	}
	printInfo("%s: owned by %s at depth %d (process %s)\n", p.Name, o, depth, state)
	return nil
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <name>",
		Short: "Reverse a transaction abandoned by a dead process",
		Long: `The unlock command checks the owner recorded in the heap map. When the
owning process no longer exists, the heap is loaded, the abandoned log is
reversed and the owner fields are cleared. A live owner is left alone.

Example:
  sdrctl unlock orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(args)
		},
	}
}

func runUnlock(args []string) error {
	p, err := profileFor(args[0], false)
	if err != nil {
		return err
	}
	r := sdr.NewRegistry(sdr.WithLogger(logger.L))
	defer r.Close()
	o, depth, err := r.Unlock(p)
	if err != nil {
		return err
	}
	if o.IsZero() {
		printInfo("%s: no transaction in progress\n", p.Name)
		return nil
	}
	printInfo("%s: released transaction of %s at depth %d\n", p.Name, o, depth)
	return nil
}
