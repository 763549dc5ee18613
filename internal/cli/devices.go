package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxdict/internal/record"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := record.DefaultBackends(runtime.GOOS)
			if len(backends) == 0 {
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
			if preferred := app.cfg.Audio.Backend; preferred != "" && preferred != "auto" {
				backend, err := record.NewBackend(preferred)
				if err != nil {
					return err
				}
				backends = []record.Backend{backend}
			}

			out := cmd.OutOrStdout()
			for _, backend := range backends {
				fmt.Fprintf(out, "== %s ==\n", backend.Name())
				if !backend.Available() {
					fmt.Fprintln(out, "not available")
					fmt.Fprintln(out)
					continue
				}

				listing, err := backend.ListDevices(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "failed to list devices: %v\n\n", err)
					continue
				}

				if listing == "" {
					fmt.Fprintln(out, "no output")
					fmt.Fprintln(out)
					continue
				}

				fmt.Fprintln(out, listing)
				fmt.Fprintln(out)
			}

			return nil
		},
	}
}
