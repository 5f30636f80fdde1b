package main

import (
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/internal/format"
)

// Set by the linker: -X main.version=... -X main.commit=... -X main.date=...
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	MapLayout int    `json:"map_layout"`
	Go        string `json:"go,omitempty"`
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	})
}

func runVersion() error {
	v := versionInfo{Version: version, Commit: commit, Built: date, MapLayout: format.MapVersion}
	if bi, ok := debug.ReadBuildInfo(); ok {
		v.Go = bi.GoVersion
	}
	if jsonOut {
		return printJSON(v)
	}
	printInfo("sdrctl %s\n", v.Version)
	printInfo("  commit: %s\n", v.Commit)
	printInfo("  built: %s\n", v.Built)
	printInfo("  map layout: %d\n", v.MapLayout)
	if v.Go != "" {
		printInfo("  go: %s\n", v.Go)
	}
	return nil
}
