package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/audio"
	"github.com/fmueller/voxdict/internal/clipboard"
	"github.com/fmueller/voxdict/internal/indicator"
	"github.com/fmueller/voxdict/internal/session"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := app.transcribeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if transcript == "" {
				app.log().Warn(noSpeechHint)
			}
			if !copyToClipboard {
				return nil
			}

			clip, err := app.clipboardFn()
			if err != nil {
				return err
			}
			delivered, err := clipboard.NewDelivery(clip, nil, clipboard.DeliveryOptions{
				KeepTrailingNewline: app.cfg.Output.KeepTrailingNewline,
				CopyEmpty:           app.cfg.Output.CopyEmpty,
				Logger:              app.log(),
			}).Deliver(cmd.Context(), transcript)
			if err != nil {
				return err
			}
			if delivered.Copied {
				app.log().Info("transcript copied to clipboard")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}

// transcribeFile runs the engine on an existing file. The engine's side file
// goes to a scratch artifact, never next to the user's audio.
func (a *appState) transcribeFile(ctx context.Context, audioPath string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	if level, err := audio.MeasureWAV(audioPath); err == nil && level.Silent(a.cfg.Audio.SilenceDBFS) {
		a.log().Info("audio looks silent", zap.Float64("rms_dbfs", level.RMSdBFS), zap.Float64("peak_dbfs", level.PeakdBFS))
	}

	engine, request, err := a.prepareFn(ctx)
	if err != nil {
		return "", err
	}

	workspace, err := session.NewWorkspace(a.env.WorkDir(a.cfg.TempDir), a.log())
	if err != nil {
		return "", err
	}
	artifact, err := workspace.Acquire("transcribe-" + uuid.NewString())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			a.log().Warn("failed to remove scratch directory", zap.String("dir", artifact.Dir()), zap.Error(err))
		}
	}()

	request.AudioPath = audioPath
	request.OutputBase = artifact.OutputBase()

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", request.ModelPath), zap.String("language", request.Language))
	stop := indicator.StartSpinner(a.progressEnabled(), os.Stderr, "Transcribing")
	started := time.Now()
	transcript, err := engine.Transcribe(ctx, request)
	stop()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return transcript, nil
}
