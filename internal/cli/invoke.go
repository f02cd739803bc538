package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/stepflow"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/story"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Dev     bool
	Timeout time.Duration
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Poll every subscribed office once and wait for the result",
		Long: `Poll every subscribed office once in-process.

The poll instance and the office instances it starts are awaited and their
statuses printed.  --dev bypasses change detection and notifies dev
destinations only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			statuses, err := invoke(ctx, opts)
			for _, status := range statuses {
				if werr := writeStatus(cmd.OutOrStdout(), opts.Format, status); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "force a dev run")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "maximum time to wait")

	return cmd
}

func invoke(ctx context.Context, opts *InvokeOptions) ([]*instance.Status, error) {
	srv, err := newService(ctx, opts.RootOptions)
	if err != nil {
		return nil, err
	}
	rt := srv.Runtime()
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	defer rt.Shutdown(context.Background())

	poll, err := rt.Invoke(ctx, opts.Dev)
	if err != nil {
		return nil, err
	}
	status, err := rt.Wait(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	statuses := []*instance.Status{status}
	offices, err := children(ctx, rt, poll.ID)
	if err != nil {
		return statuses, err
	}
	for _, office := range offices {
		status, err := rt.Wait(ctx, office.ID)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, status)
	}
	return statuses, failed(statuses)
}

func children(ctx context.Context, rt *stepflow.Runtime, parentID string) ([]*instance.Instance, error) {
	offices, err := rt.Instances(ctx, dao.NewParameter("Kind", story.KindOffice))
	if err != nil {
		return nil, err
	}
	var ret []*instance.Instance
	for _, office := range offices {
		if office.ParentID == parentID {
			ret = append(ret, office)
		}
	}
	return ret, nil
}

func failed(statuses []*instance.Status) error {
	count := 0
	for _, status := range statuses {
		if status.State == instance.StateFailed {
			count++
		}
	}
	if count > 0 {
		return fmt.Errorf("%d of %d instance(s) failed", count, len(statuses))
	}
	return nil
}

// run executes one instance of kind in-process and waits for it.
func run(ctx context.Context, opts *RootOptions, kind string, params instance.Parameters) (*instance.Status, error) {
	srv, err := newService(ctx, opts)
	if err != nil {
		return nil, err
	}
	rt := srv.Runtime()
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	defer rt.Shutdown(context.Background())
	anInstance, err := rt.Create(ctx, kind, params)
	if err != nil {
		return nil, err
	}
	status, err := rt.Wait(ctx, anInstance.ID)
	if err != nil {
		return nil, err
	}
	return status, failed([]*instance.Status{status})
}
