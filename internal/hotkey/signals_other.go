//go:build !unix

package hotkey

import (
	"context"

	"go.uber.org/zap"
)

type Target interface {
	Toggle()
	Cancel()
}

// ListenSignals has no user signals to watch on this platform.
func ListenSignals(ctx context.Context, _ Target, logger *zap.Logger) {
	if logger != nil {
		logger.Debug("signal triggers unsupported on this platform")
	}
	<-ctx.Done()
}
