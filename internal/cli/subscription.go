package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/subscription"
	"github.com/viant/stepflow/story"
)

// NewOfficeCommand creates the office command.
func NewOfficeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "office <office-id> <call-sign> [name]",
		Short: "Register or rename a weather office",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid office id %q: %w", args[0], err)
			}
			office := &subscription.Office{ID: id, CallSign: args[1]}
			if len(args) == 3 {
				office.Name = args[2]
			}
			srv, err := newService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			rt := srv.Runtime()
			defer rt.Shutdown(cmd.Context())
			if err := rt.Subscriptions().EnsureOffice(cmd.Context(), office); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "office %d %s registered\n", office.ID, office.CallSign)
			return nil
		},
	}
	return cmd
}

// SubscribeOptions holds flags for the subscribe command.
type SubscribeOptions struct {
	*RootOptions
	Guild   string
	Dev     bool
	Timeout time.Duration
}

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubscribeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "subscribe <office> <channel> <destination>",
		Short: "Subscribe a channel webhook to an office",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			status, err := run(ctx, opts.RootOptions, story.KindSubscribe, instance.Parameters{
				"office":      args[0],
				"channel":     args[1],
				"destination": args[2],
				"guild":       opts.Guild,
				"dev":         opts.Dev,
			})
			if status != nil {
				if werr := writeStatus(cmd.OutOrStdout(), opts.Format, status); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Guild, "guild", "", "guild the channel belongs to")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "receive dev runs")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "maximum time to wait")
	return cmd
}

// UnsubscribeOptions holds flags for the unsubscribe command.
type UnsubscribeOptions struct {
	*RootOptions
	Office  string
	Timeout time.Duration
}

// NewUnsubscribeCommand creates the unsubscribe command.
func NewUnsubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnsubscribeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "unsubscribe <channel>",
		Short: "Unsubscribe a channel from one office or from all of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			params := instance.Parameters{"channel": args[0]}
			if opts.Office != "" {
				params["office"] = opts.Office
			}
			status, err := run(ctx, opts.RootOptions, story.KindUnsubscribe, params)
			if status != nil {
				if werr := writeStatus(cmd.OutOrStdout(), opts.Format, status); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Office, "office", "", "office to unsubscribe from (default all)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "maximum time to wait")
	return cmd
}
