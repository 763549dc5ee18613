package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

const pasteTimeout = 2 * time.Second

type Paster interface {
	Paste(ctx context.Context) error
}

// CommandPaster runs a configured shortcut sender such as wtype or xdotool.
type CommandPaster struct {
	argv []string
}

func NewCommandPaster(argv []string) *CommandPaster {
	return &CommandPaster{argv: argv}
}

func (p *CommandPaster) Paste(ctx context.Context) error {
	if len(p.argv) == 0 {
		return errors.New("paste command is empty")
	}

	pasteCtx, cancel := context.WithTimeout(ctx, pasteTimeout)
	defer cancel()

	out, err := exec.CommandContext(pasteCtx, p.argv[0], p.argv[1:]...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("paste with %s: %w (%s)", p.argv[0], err, msg)
		}
		return fmt.Errorf("paste with %s: %w", p.argv[0], err)
	}
	return nil
}

// KeyPaster synthesises the platform paste shortcut through a virtual
// keyboard. On Linux that needs write access to /dev/uinput.
type KeyPaster struct {
	once    sync.Once
	bonding keybd_event.KeyBonding
	initErr error
}

func (p *KeyPaster) Paste(ctx context.Context) error {
	p.once.Do(func() {
		p.bonding, p.initErr = keybd_event.NewKeyBonding()
		if p.initErr != nil {
			return
		}
		// uinput devices are invisible to the compositor for a moment after
		// creation.
		if runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
	})
	if p.initErr != nil {
		return fmt.Errorf("create virtual keyboard: %w", p.initErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.bonding.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		p.bonding.HasSuper(true)
	} else {
		p.bonding.HasCTRL(true)
	}
	if err := p.bonding.Launching(); err != nil {
		return fmt.Errorf("send paste shortcut: %w", err)
	}
	return nil
}

// DetectPaster prefers an explicit argv, then a shortcut tool on PATH, then
// the virtual keyboard.
func DetectPaster(argv []string) Paster {
	if len(argv) > 0 {
		return NewCommandPaster(argv)
	}
	for _, candidate := range pasteCandidates(runtime.GOOS) {
		if _, err := exec.LookPath(candidate[0]); err == nil {
			return NewCommandPaster(candidate)
		}
	}
	return &KeyPaster{}
}

func pasteCandidates(goos string) [][]string {
	if goos == "darwin" {
		return [][]string{{"osascript", "-e", `tell application "System Events" to keystroke "v" using command down`}}
	}
	return [][]string{
		{"wtype", "-M", "ctrl", "v", "-m", "ctrl"},
		{"ydotool", "key", "29:1", "47:1", "47:0", "29:0"},
		{"xdotool", "key", "--clearmodifiers", "ctrl+v"},
	}
}
