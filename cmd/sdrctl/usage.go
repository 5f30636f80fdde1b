package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/sdr"
)

func init() {
	rootCmd.AddCommand(newUsageCmd())
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <name>",
		Short: "Show free space per size class and bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(args)
		},
	}
}

func runUsage(args []string) error {
	return withSDR(args[0], func(s *sdr.SDR) error {
		u, err := s.Usage()
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(u)
		}
		printInfo("\n%s %s, %s free, %s allocated\n", heading("Small pool:"),
			formatBytes(u.SmallPoolSize), formatBytes(u.SmallPoolFree), formatBytes(u.SmallPoolAllocated))
		for i, free := range u.SmallFree {
			if free > 0 {
				printInfo("  %4d-byte objects: %s free\n", (i+1)*format.WordSize, formatBytes(free))
			}
		}
		printInfo("\n%s %s, %s free, %s allocated\n", heading("Large pool:"),
			formatBytes(u.LargePoolSize), formatBytes(u.LargePoolFree), formatBytes(u.LargePoolAllocated))
		for b, free := range u.LargeFree {
			if free > 0 {
				printInfo("  bucket %2d (>= %d bytes): %s free\n", b, int64(format.LargeGranule)<<b, formatBytes(free))
			}
		}
		printInfo("\n%s %s\n", heading("Unassigned:"), formatBytes(u.Unassigned))
		return nil
	})
}
