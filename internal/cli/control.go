package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxdict/internal/ipc"
)

// newControlCmd builds the thin clients compositor keybinds call.
func newControlCmd(app *appState, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket := app.env.SocketPath()
			resp, err := app.sendFn(cmd.Context(), socket, ipc.Request{Command: command}, ipcTimeout)
			if err != nil {
				if errors.Is(err, ipc.ErrNotRunning) {
					return fmt.Errorf("%w; start it with `voxdict run`", err)
				}
				return err
			}
			if !resp.OK {
				return fmt.Errorf("%s rejected: %s", command, resp.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.State)
			if command == ipc.CommandStatus && resp.Message != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "last error: %s\n", resp.Message)
			}
			return nil
		},
	}
}
