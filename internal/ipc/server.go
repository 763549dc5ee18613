package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("voxdict daemon already running")

const connDeadline = 5 * time.Second

type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Listen binds the daemon socket. A socket left behind by a dead daemon is
// replaced; one answered by a live daemon yields ErrAlreadyRunning.
func Listen(ctx context.Context, path string, probeTimeout time.Duration) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) && !strings.Contains(err.Error(), "address already in use") {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("could not bind %s", path)
}

// Serve answers one request per connection until ctx is cancelled, then
// removes the socket file.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var wg sync.WaitGroup
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(connDeadline))

			resp := serveConn(ctx, c, handler)
			if !resp.OK {
				logger.Debug("ipc request rejected", zap.String("error", resp.Error))
			}
			if err := json.NewEncoder(c).Encode(resp); err != nil {
				logger.Debug("ipc response not delivered", zap.Error(err))
			}
		}(conn)
	}
}

func serveConn(ctx context.Context, c net.Conn, handler Handler) Response {
	line, err := bufio.NewReader(c).ReadBytes('\n')
	if err != nil {
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	return handler.Handle(ctx, req)
}
