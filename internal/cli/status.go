package cli

import (
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <instance-id>",
		Short: "Print the status of an instance",
		Long: `Print the status of an instance.

Only instances kept in a persistent store (store.kind fs, or store.url set)
outlive the process that ran them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := newService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			rt := srv.Runtime()
			defer rt.Shutdown(cmd.Context())
			status, err := rt.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), rootOpts.Format, status)
		},
	}
}
