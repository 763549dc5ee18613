package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/download"
	"github.com/fmueller/voxdict/internal/hotkey"
	"github.com/fmueller/voxdict/internal/whisper"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets, check whisper-cli and print hotkey bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.cfg.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			if !resolved.NeedsDownload && resolved.SHA256 != "" {
				if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
					app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
					resolved.NeedsDownload = true
				}
			}

			out := cmd.OutOrStdout()
			if resolved.NeedsDownload {
				app.log().Info("downloading model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
				if err := app.fetchModel(cmd.Context(), resolved); err != nil {
					return err
				}
				fmt.Fprintf(out, "Model %s installed at %s\n", resolved.Name, resolved.Path)
			} else {
				app.log().Info("model already present", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
				fmt.Fprintf(out, "Model %s already present at %s\n", resolved.Name, resolved.Path)
			}

			printEngineCheck(out, app.cfg.Engine.Path)

			binding, err := hotkey.ParseBinding(app.cfg.Hotkey)
			if err != nil {
				return err
			}
			printBindings(out, binding)
			return nil
		},
	}
}

// printEngineCheck reports the whisper-cli the daemon would run. A missing
// binary is reported with a fix rather than failing setup.
func printEngineCheck(w io.Writer, configured string) {
	self, err := os.Executable()
	if err != nil {
		self = ""
	}
	path, err := whisper.ResolveEnginePath(configured, self)
	if err != nil {
		fmt.Fprintf(w, "whisper-cli not found: %v\n", err)
		fmt.Fprintf(w, "Install whisper.cpp so whisper-cli is on PATH, or set engine.path (or %s).\n", whisper.EnginePathEnv)
		return
	}
	fmt.Fprintf(w, "whisper-cli found at %s\n", path)
}

func printBindings(w io.Writer, binding hotkey.Binding) {
	const command = "voxdict toggle"
	fmt.Fprintf(w, "\nBind %s to `%s` in your desktop:\n", binding, command)
	fmt.Fprintf(w, "  Hyprland:  %s\n", binding.Hyprland(command))
	fmt.Fprintf(w, "  Sway/i3:   %s\n", binding.Sway(command))
	fmt.Fprintf(w, "  GNOME:     custom shortcut %q running %q\n", binding.GNOME(), command)
	fmt.Fprintln(w, "Then start the daemon with `voxdict run`.")
}
