package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/internal/logger"
	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/dirty"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	logDir  string
	trace   bool

	// Profile flags
	heapDir     string
	heapWords   int64
	heapFlags   string
	logSize     int64
	durability  string
	searchLimit int
	restartCmd  string
)

var rootCmd = &cobra.Command{
	Use:   "sdrctl",
	Short: "Inspect and administer SDR heap files",
	Long: `sdrctl inspects and administers file-backed SDR heaps: it reports
space usage and consistency, shows and clears transaction ownership left by
dead processes, and manages the catalogue of named objects.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyColor()
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return logger.Init(logger.Options{
			Enabled: verbose || logDir != "",
			LogDir:  logDir,
			Level:   level,
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&logDir, "log-dir", "", "Append JSON logs to sdrctl.log in this directory")
	pf.BoolVar(&trace, "trace", false, "Report allocations left outstanding by the command")

	pf.StringVarP(&heapDir, "path", "p", ".", "Directory holding <name>.sdr and <name>.sdrlog")
	pf.Int64Var(&heapWords, "words", 0, "Heap size in 8-byte words (default: size of the existing file)")
	pf.StringVar(&heapFlags, "flags", "file|reversible", "Profile flags: dram, file, reversible, bounded")
	pf.Int64Var(&logSize, "log-size", 0, "Keep the log in memory with this many bytes (0: log file)")
	pf.StringVar(&durability, "durability", "auto", "Commit durability: auto, data or full")
	pf.IntVar(&searchLimit, "search-limit", 0, "Large-pool search limit (0: default)")
	pf.StringVar(&restartCmd, "restart-cmd", "", "Command run through sh -c after every reversal")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// profileFor builds the profile of the named heap from the flags. Unless
// creating, the heap file must exist, and its size supplies --words when the
// flag is left at 0.
func profileFor(name string, create bool) (sdr.Profile, error) {
	flags, err := sdr.ParseFlags(heapFlags)
	if err != nil {
		return sdr.Profile{}, err
	}
	mode, err := dirty.ParseFlushMode(durability)
	if err != nil {
		return sdr.Profile{}, err
	}
	p := sdr.Profile{
		Name:        name,
		Flags:       flags,
		HeapWords:   heapWords,
		LogSize:     logSize,
		Path:        heapDir,
		RestartCmd:  restartCmd,
		SearchLimit: searchLimit,
		Durability:  mode,
	}
	if p.Flags&sdr.InFile == 0 {
		return sdr.Profile{}, fmt.Errorf("heap %s: sdrctl works on file heaps; add \"file\" to --flags", name)
	}

	st, err := os.Stat(p.HeapPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return sdr.Profile{}, fmt.Errorf("heap %s does not exist in %s", name, heapDir)
		}
	case err != nil:
		return sdr.Profile{}, err
	case create:
		return sdr.Profile{}, fmt.Errorf("heap %s already exists in %s", name, heapDir)
	case p.HeapWords == 0:
		p.HeapWords = st.Size() / format.WordSize
	}
	if err := p.Validate(); err != nil {
		return sdr.Profile{}, err
	}
	return p, nil
}

// withSDR loads the named heap, runs fn and closes it again.
func withSDR(name string, fn func(s *sdr.SDR) error) error {
	p, err := profileFor(name, false)
	if err != nil {
		return err
	}
	opts := []sdr.Option{sdr.WithLogger(logger.L)}
	if trace {
		opts = append(opts, sdr.WithTrace())
	}
	r := sdr.NewRegistry(opts...)
	defer r.Close()

	printVerbose("Loading heap: %s\n", p.HeapPath())
	s, err := r.Load(p)
	if err != nil {
		return fmt.Errorf("failed to load heap: %w", err)
	}
	if err := fn(s); err != nil {
		return err
	}
	if trace {
		return printTrace(s.TraceReport())
	}
	return nil
}

// inTxn runs fn in a transaction of its own, ending it when fn succeeds and
// canceling it otherwise.
func inTxn(s *sdr.SDR, fn func(t *sdr.Txn) error) error {
	v, err := s.StartUsing()
	if err != nil {
		return err
	}
	defer v.StopUsing()
	t, err := v.Begin()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		_ = t.Cancel()
		return err
	}
	if !t.Modified() {
		return t.Exit()
	}
	return t.End()
}

func printTrace(entries []sdr.TraceEntry) error {
	if jsonOut {
		return printJSON(entries)
	}
	printInfo("\n%s %d\n", heading("Outstanding allocations:"), len(entries))
	for _, e := range entries {
		printInfo("  %s\n", e)
	}
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatBytes renders a byte count the way info reports file sizes.
func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
