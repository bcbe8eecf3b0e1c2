// Package main provides the scf CLI tool entry point.
//
// Overview:
//   - Responsibility: Resolve and watch configuration properties from the command line
//   - Key Types: Cobra command structure, source stack options
//   - Concurrency Model: get runs once; watch runs sources and notifications as services
//   - Error Semantics: Non-zero exit code with the failure on stderr
//   - Performance Notes: Sources are built once per invocation
//
// Usage:
//
//	scf get timeout --properties app.properties --type duration --default 5s
//	scf watch timeout retries --yaml app.yaml --metrics-addr :9091
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/logx"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	logLevel  string
	logFormat string
	stack     stackOptions
}

// newRootCmd builds the command tree. Each call returns an independent tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "scf",
		Short: "Typed, prioritized, live configuration",
		Long: `scf resolves configuration properties from a stack of prioritized sources.

Sources, from highest to lowest priority:
- values given with --set
- environment variables (--env, --env-prefix)
- .properties files (--properties), first file wins
- YAML files (--yaml), first file wins
- a SQL table (--db)
- a Kubernetes ConfigMap (--configmap)

With --cascade-factor every source is looked up with the most specific
cascaded key first, e.g. "timeout.prod.eu" before "timeout.prod" before "timeout".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       versionString(),
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", string(logx.FormatLogfmt), "Log format (logfmt, json)")
	opts.stack.bindFlags(flags)

	rootCmd.AddCommand(newGetCmd(opts), newWatchCmd(opts), newVersionCmd())
	return rootCmd
}

// logger builds the logger for a command invocation.
func (o *globalOptions) logger(w io.Writer) log.Logger {
	return logx.New(
		logx.WithWriter(w),
		logx.WithLevel(logx.ParseLevel(o.logLevel)),
		logx.WithFormat(logx.Format(o.logFormat)),
	)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
