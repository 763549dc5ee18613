package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxdict/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// Printing the version must not depend on a readable config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "voxdict v%s\n", version.Resolve())
			return nil
		},
	}
}
