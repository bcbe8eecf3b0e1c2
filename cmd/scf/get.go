package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/core/errors"
)

// getOptions holds flags of the get command.
type getOptions struct {
	property propertyOptions
	output   string
}

func newGetCmd(global *globalOptions) *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get KEY...",
		Short: "Resolve properties once and print them",
		Long: `Resolve each KEY against the source stack and print the result.

Every key is bound with the same --type, --default and --required flags.
Text output prints one key=value line per key; yaml and json also report the
source that supplied each value.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), global, opts, args)
		},
	}
	opts.property.bindFlags(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, yaml, json)")
	return cmd
}

func (o *propertyOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.valueType, "type", "t", "string", "Value type (string, int, int64, float, bool, duration, list, map)")
	cmd.Flags().StringVar(&o.defaultValue, "default", "", "Default value, parsed as --type")
	cmd.Flags().BoolVar(&o.required, "required", false, "Fail when no source or default supplies a value")
}

func runGet(ctx context.Context, out, errOut io.Writer, global *globalOptions, opts *getOptions, keys []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := global.logger(errOut)

	st, err := buildStack(ctx, global.stack, logger)
	if err != nil {
		return err
	}
	if err := st.start(ctx); err != nil {
		return err
	}
	defer st.stop(context.WithoutCancel(ctx))

	m, err := configx.NewManager(configx.ManagerConfig{
		Name:    "scf",
		Sources: st.sources,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	views := make([]propertyView, 0, len(keys))
	for _, key := range keys {
		p, err := bindProperty(m, key, opts.property)
		if err != nil {
			return err
		}
		views = append(views, viewOf(p))
	}
	return printViews(out, opts.output, views)
}

func printViews(out io.Writer, format string, views []propertyView) error {
	switch format {
	case "", "text":
		for _, v := range views {
			fmt.Fprintf(out, "%s=%s\n", v.Key, v.text())
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	default:
		return errors.Newf(errors.CodeInvalidArgument, "unknown output format %q", format)
	}
}
