package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "load <file.sql>",
		Short:         "Run every statement of an SQL dump",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			e, err := rootOpts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.LoadFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("after %d statements: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d statements executed\n", n)
			return nil
		},
	}

	return cmd
}
