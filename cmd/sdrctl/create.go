package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/internal/logger"
	"github.com/joshuapare/sdrkit/sdr"
)

func init() {
	rootCmd.AddCommand(newCreateCmd(), newDestroyCmd())
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Format a new heap file",
		Long: `The create command formats <path>/<name>.sdr with an empty map of
--words words.

Example:
  sdrctl create orders --words 1048576 --path /var/lib/sdr`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

func runCreate(args []string) error {
	if heapWords == 0 {
		return fmt.Errorf("create %s: --words is required", args[0])
	}
	p, err := profileFor(args[0], true)
	if err != nil {
		return err
	}
	r := sdr.NewRegistry(sdr.WithLogger(logger.L))
	defer r.Close()
	s, err := r.Load(p)
	if err != nil {
		return fmt.Errorf("failed to create heap: %w", err)
	}
	printInfo("Created %s (%s)\n", p.HeapPath(), formatBytes(s.HeapSize()))
	return nil
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <name>",
		Short: "Remove a heap and its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(args)
		},
	}
}

func runDestroy(args []string) error {
	p, err := profileFor(args[0], false)
	if err != nil {
		return err
	}
	r := sdr.NewRegistry(sdr.WithLogger(logger.L))
	defer r.Close()
	if _, err := r.Load(p); err != nil {
		return fmt.Errorf("failed to load heap: %w", err)
	}
	if err := r.Destroy(p.Name); err != nil {
		return err
	}
	printInfo("Destroyed %s\n", p.HeapPath())
	return nil
}
