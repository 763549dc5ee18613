package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard command available")

const copyTimeout = 4 * time.Second

type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// CommandClipboard pipes text into a clipboard helper such as wl-copy.
type CommandClipboard struct {
	argv []string
	// detached helpers (xclip) keep running to serve the selection, so they
	// are released instead of waited on.
	detached bool
}

func NewCommandClipboard(argv []string) *CommandClipboard {
	return &CommandClipboard{argv: argv}
}

func (c *CommandClipboard) Name() string {
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

func (c *CommandClipboard) SetText(ctx context.Context, text string) error {
	if len(c.argv) == 0 {
		return ErrUnavailable
	}
	if c.detached {
		return copyWithDetachedCommand(c.argv, text)
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = io.Discard
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("copy to clipboard with %s: %w (%s)", c.argv[0], err, msg)
		}
		return fmt.Errorf("copy to clipboard with %s: %w", c.argv[0], err)
	}
	return nil
}

// LibraryClipboard uses github.com/atotto/clipboard, which covers Windows and
// falls back to xsel/xclip/wl-clipboard discovery on other systems.
type LibraryClipboard struct{}

func (LibraryClipboard) SetText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// Detect returns a clipboard for the current desktop. An explicit argv wins;
// otherwise the first known helper on PATH is used, then the library.
func Detect(argv []string) (Clipboard, error) {
	if len(argv) > 0 {
		return NewCommandClipboard(argv), nil
	}
	if c, ok := detectCommand(); ok {
		return c, nil
	}
	if !clipboard.Unsupported {
		return LibraryClipboard{}, nil
	}
	return nil, ErrUnavailable
}

func detectCommand() (*CommandClipboard, bool) {
	if runtime.GOOS == "darwin" {
		if _, err := exec.LookPath("pbcopy"); err == nil {
			return &CommandClipboard{argv: []string{"pbcopy"}}, true
		}
		return nil, false
	}

	if _, err := exec.LookPath("wl-copy"); err == nil {
		return &CommandClipboard{argv: []string{"wl-copy"}}, true
	}

	if _, err := exec.LookPath("xclip"); err == nil {
		return &CommandClipboard{argv: []string{"xclip", "-selection", "clipboard", "-in", "-silent"}, detached: true}, true
	}

	return nil, false
}

func copyWithDetachedCommand(argv []string, value string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}

	if _, err := io.WriteString(stdin, value); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}

	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("close clipboard stdin: %w", err)
	}

	_ = cmd.Process.Release()
	return nil
}
