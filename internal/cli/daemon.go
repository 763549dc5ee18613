package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/clipboard"
	"github.com/fmueller/voxdict/internal/hotkey"
	"github.com/fmueller/voxdict/internal/indicator"
	"github.com/fmueller/voxdict/internal/ipc"
	"github.com/fmueller/voxdict/internal/session"
)

func newRunCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the dictation daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDaemon(cmd.Context(), cmd)
		},
	}
}

// runDaemon wires the session machine to its event sources and blocks until
// SIGINT/SIGTERM. The socket is bound first so a second daemon fails fast.
func (a *appState) runDaemon(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	socket := a.env.SocketPath()
	listener, err := ipc.Listen(ctx, socket, ipcTimeout)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			return fmt.Errorf("%w on %s; use `voxdict toggle` to control it", err, socket)
		}
		return err
	}
	defer listener.Close()

	engine, request, err := a.prepareFn(ctx)
	if err != nil {
		return err
	}

	delivery, err := a.newDelivery()
	if err != nil {
		return err
	}

	workspace, err := session.NewWorkspace(a.env.WorkDir(a.cfg.TempDir), a.log())
	if err != nil {
		return err
	}
	if _, err := workspace.Sweep(); err != nil {
		a.log().Warn("could not remove every stale artifact", zap.Error(err))
	}

	terminal := indicator.NewTerminalSink(a.progressEnabled(), cmd.ErrOrStderr())
	dispatcher := indicator.NewDispatcher(a.log(),
		indicator.NewLogSink(a.log()),
		indicator.NewNotifySink(indicator.NotifyOptions{
			Sound:  a.cfg.Feedback.Sound,
			Notify: a.cfg.Feedback.Notify,
			Logger: a.log(),
		}),
		terminal,
	)
	defer terminal.Close()
	defer dispatcher.Close()

	machine, err := session.NewMachine(session.Config{
		Request:     request,
		MaxDuration: a.cfg.Audio.MaxDuration,
		SilenceDBFS: a.cfg.Audio.SilenceDBFS,
	}, session.Deps{
		Capture:   a.captureFn(),
		Engine:    engine,
		Delivery:  delivery,
		Workspace: workspace,
		Status:    dispatcher,
		Logger:    a.log(),
	})
	if err != nil {
		return err
	}

	a.announce(socket)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				a.log().Error("daemon component stopped", zap.String("component", name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	run("session", func() error { return machine.Run(ctx) })
	run("ipc", func() error { return ipc.Serve(ctx, listener, machine, a.log()) })
	run("signals", func() error {
		hotkey.ListenSignals(ctx, machine, a.log())
		return nil
	})

	wg.Wait()
	a.log().Info("voxdict stopped")
	return errors.Join(errs...)
}

func (a *appState) newDelivery() (*clipboard.Delivery, error) {
	clip, err := a.clipboardFn()
	if err != nil {
		return nil, fmt.Errorf("%w; install wl-clipboard (Wayland), xclip (X11) or use macOS pbcopy", err)
	}

	var paster clipboard.Paster
	if a.cfg.Output.AutoPaste {
		paster = clipboard.DetectPaster(a.cfg.PasteArgv())
	}

	return clipboard.NewDelivery(clip, paster, clipboard.DeliveryOptions{
		AutoPaste:           a.cfg.Output.AutoPaste,
		PasteDelay:          a.cfg.Output.PasteDelay,
		KeepTrailingNewline: a.cfg.Output.KeepTrailingNewline,
		CopyEmpty:           a.cfg.Output.CopyEmpty,
		Logger:              a.log(),
	}), nil
}

func (a *appState) announce(socket string) {
	fields := []zap.Field{zap.String("socket", socket), zap.Int("pid", os.Getpid())}
	if binding, err := hotkey.ParseBinding(a.cfg.Hotkey); err == nil {
		fields = append(fields, zap.Stringer("hotkey", binding), zap.String("hyprland", binding.Hyprland("voxdict toggle")))
	}
	a.log().Info("voxdict ready; bind your hotkey to `voxdict toggle` or send SIGUSR1", fields...)
}
