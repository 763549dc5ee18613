package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/clipboard"
	"github.com/fmueller/voxdict/internal/config"
	"github.com/fmueller/voxdict/internal/indicator"
	"github.com/fmueller/voxdict/internal/ipc"
	"github.com/fmueller/voxdict/internal/logging"
	"github.com/fmueller/voxdict/internal/platform"
	"github.com/fmueller/voxdict/internal/session"
	"github.com/fmueller/voxdict/internal/version"
	"github.com/fmueller/voxdict/internal/whisper"
)

const ipcTimeout = 3 * time.Second

type appState struct {
	configFile string
	noProgress bool

	cfg    config.Config
	env    platform.Env
	logger *zap.Logger

	envFn       func() (platform.Env, error)
	prepareFn   func(ctx context.Context) (whisper.Engine, whisper.TranscriptionRequest, error)
	captureFn   func() session.Capture
	clipboardFn func() (clipboard.Clipboard, error)
	sendFn      func(ctx context.Context, path string, req ipc.Request, timeout time.Duration) (ipc.Response, error)
}

// flagKeys binds persistent flags to config keys so a flag set on the command
// line outranks the config file and the environment.
var flagKeys = map[string]string{
	"log.verbose":                  "verbose",
	"log.json":                     "json",
	"log.file":                     "log-file",
	"model":                        "model",
	"model_dir":                    "model-dir",
	"language":                     "language",
	"auto_download":                "auto-download",
	"temp_dir":                     "temp-dir",
	"hotkey":                       "hotkey",
	"engine.path":                  "engine-path",
	"engine.timeout":               "engine-timeout",
	"engine.output_mode":           "engine-output",
	"engine.prompt":                "prompt",
	"audio.backend":                "backend",
	"audio.input":                  "input",
	"audio.sample_rate":            "sample-rate",
	"audio.max_duration":           "max-duration",
	"output.auto_paste":            "auto-paste",
	"output.keep_trailing_newline": "keep-newline",
	"output.copy_empty":            "copy-empty",
	"feedback.sound":               "sound",
	"feedback.notify":              "notify",
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		envFn:       platform.CurrentEnv,
		clipboardFn: func() (clipboard.Clipboard, error) { return clipboard.Detect(nil) },
		sendFn:      ipc.Send,
	}
	app.prepareFn = app.prepareEngine
	app.captureFn = app.newRecorder
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxdict",
		Short:         "Toggle local voice dictation from a hotkey; text lands on the clipboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDaemon(cmd.Context(), cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	bindFlags(cmd, app)

	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newControlCmd(app, ipc.CommandToggle, "Start or stop dictation in the running daemon"))
	cmd.AddCommand(newControlCmd(app, ipc.CommandCancel, "Discard the current recording"))
	cmd.AddCommand(newControlCmd(app, ipc.CommandStatus, "Show the daemon state and the last error"))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "Config file (default: per-user config.yaml)")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable spinners and progress bars")

	flags.Bool("verbose", false, "Enable verbose logs")
	flags.Bool("json", false, "Enable JSON logging")
	flags.String("log-file", "", "Also write logs to this file")

	flags.String("model", whisper.DefaultModel, "Model name or model file path")
	flags.String("model-dir", "", "Directory where models are stored")
	flags.String("language", "auto", "Language hint (auto|en|ja|de|...)")
	flags.Bool("auto-download", true, "Download a missing model on start")
	flags.String("temp-dir", "", "Directory for per-session audio artifacts")
	flags.String("hotkey", "", "Hotkey shown in setup hints, e.g. <ctrl>+<alt>+h")

	flags.String("engine-path", "", "Path to whisper-cli")
	flags.Duration("engine-timeout", whisper.DefaultTimeout, "Maximum time one transcription may take")
	flags.String("engine-output", "auto", "How to read whisper-cli output: auto|txt|stdout")
	flags.String("prompt", "", "Initial prompt passed to whisper-cli")

	flags.String("backend", "auto", "Recording backend: auto|pulse|pw-record|arecord|ffmpeg")
	flags.String("input", "", "Input device (run \"voxdict devices\" to list)")
	flags.Int("sample-rate", 0, "Capture sample rate in Hz")
	flags.Duration("max-duration", 0, "Stop a recording automatically after this long (default 0: no limit)")

	flags.Bool("auto-paste", false, "Paste the transcript after copying it")
	flags.Bool("keep-newline", false, "End the copied transcript with a newline")
	flags.Bool("copy-empty", false, "Copy blank transcripts to the clipboard")
	flags.Bool("sound", true, "Play sound cues when recording starts and stops")
	flags.Bool("notify", false, "Show desktop notifications for results")
}

func (a *appState) load(cmd *cobra.Command) error {
	envFn := a.envFn
	if envFn == nil {
		envFn = platform.CurrentEnv
	}
	env, err := envFn()
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{
		File:     a.configFile,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
		Env:      env,
	})
	if err != nil {
		return err
	}

	logFile := cfg.Log.File
	if logFile == "" && isDaemonCmd(cmd) && !indicator.StderrIsTerminal() {
		// Started from a compositor autostart: nobody reads stderr.
		if resolved, err := env.LogFile(); err == nil {
			logFile = resolved
		}
	}

	logger, err := logging.New(logging.Options{Verbose: cfg.Log.Verbose, JSON: cfg.Log.JSON, File: logFile})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.env = env
	a.cfg = cfg
	a.logger = logger
	return nil
}

func isDaemonCmd(cmd *cobra.Command) bool {
	return cmd.Name() == "run" || !cmd.HasParent()
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return indicator.StderrIsTerminal()
}

func (a *appState) modelStorageDir() (string, error) {
	dir := a.cfg.ModelDir
	if dir == "" {
		resolved, err := a.env.ModelDir()
		if err != nil {
			return "", err
		}
		dir = resolved
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}
