package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, set with -ldflags "-X main.Version=...".
var (
	Version   = "v0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func versionString() string {
	return fmt.Sprintf("scf version %s (commit %s, built %s)", Version, Commit, BuildTime)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show scf version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	}
}
