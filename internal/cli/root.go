// Package cli implements the stepflow command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/stepflow"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config string
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stepflow",
		Short: "Durable step workflows for weather story updates",
		Long: `stepflow runs durable, checkpointed workflows that poll weather office
story pages, detect changes and notify subscribed webhooks.

Configuration is read from --config (YAML or JSON, any afs location) and
overridden by STEPFLOW_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewOfficeCommand(opts))
	cmd.AddCommand(NewSubscribeCommand(opts))
	cmd.AddCommand(NewUnsubscribeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newService loads the configuration and builds the engine.
func newService(ctx context.Context, opts *RootOptions, options ...stepflow.Option) (*stepflow.Service, error) {
	cfg, err := stepflow.LoadConfig(ctx, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return stepflow.NewFromConfig(cfg, options...)
}
