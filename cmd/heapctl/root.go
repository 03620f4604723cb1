package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Drive and inspect a standalone heapcore allocator instance",
	Long: `heapctl constructs a heapcore Heap in-process and exercises it for
demonstration and smoke-testing: allocate a batch of requests, dump
per-arena statistics, or force a dirty-page purge.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// console gates every subcommand's human-readable output through the
// verbose/quiet persistent flags, so runStats/runAlloc/runPurge never
// branch on the flag globals themselves. --json bypasses it entirely:
// a subcommand that wants JSON calls out.JSON and returns rather than
// going through Infof/Verbosef at all.
type console struct{}

var out console

func (console) Infof(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stdout, format, args...)
}

func (console) Verbosef(format string, args ...interface{}) {
	if quiet || !verbose {
		return
	}
	fmt.Fprintf(os.Stdout, format, args...)
}

func (console) JSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
