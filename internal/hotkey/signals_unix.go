//go:build unix

package hotkey

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Target receives triggers from an event source.
type Target interface {
	Toggle()
	Cancel()
}

// ListenSignals maps SIGUSR1 to Toggle and SIGUSR2 to Cancel until ctx ends,
// so `pkill -USR1 voxdict` works as a keybinding.
func ListenSignals(ctx context.Context, target Target, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	dispatchSignals(ctx, signals, target, logger)
}

func dispatchSignals(ctx context.Context, signals <-chan os.Signal, target Target, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			logger.Debug("signal trigger", zap.Stringer("signal", sig))
			switch sig {
			case syscall.SIGUSR1:
				target.Toggle()
			case syscall.SIGUSR2:
				target.Cancel()
			}
		}
	}
}
