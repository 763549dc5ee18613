// Package hotkey turns external triggers into dictation toggles. Global key
// grabs belong to the desktop, so voxdict publishes compositor bindings that
// run `voxdict toggle` and listens for signals itself.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultBinding = "<ctrl>+<alt>+<shift>+h"

// Binding is a parsed key chord such as <ctrl>+<alt>+h.
type Binding struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Super bool
	Key   string
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"shift":   "shift",
	"super":   "super",
	"win":     "super",
	"cmd":     "super",
	"meta":    "super",
}

func ParseBinding(value string) (Binding, error) {
	var b Binding
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return b, errors.New("hotkey is empty")
	}

	for _, part := range strings.Split(value, "+") {
		name := strings.Trim(strings.TrimSpace(part), "<>")
		if name == "" {
			return Binding{}, fmt.Errorf("hotkey %q has an empty key", value)
		}

		switch modifierAliases[name] {
		case "ctrl":
			b.Ctrl = true
		case "alt":
			b.Alt = true
		case "shift":
			b.Shift = true
		case "super":
			b.Super = true
		default:
			if b.Key != "" {
				return Binding{}, fmt.Errorf("hotkey %q names more than one key (%s, %s)", value, b.Key, name)
			}
			if !validKey(name) {
				return Binding{}, fmt.Errorf("hotkey %q: unsupported key %q", value, name)
			}
			b.Key = name
		}
	}

	if b.Key == "" {
		return Binding{}, fmt.Errorf("hotkey %q has no non-modifier key", value)
	}
	return b, nil
}

func validKey(name string) bool {
	if len(name) == 1 {
		c := name[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if name[0] == 'f' && len(name) <= 3 {
		n := 0
		for _, c := range name[1:] {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		return n >= 1 && n <= 24
	}
	switch name {
	case "space", "pause", "insert", "scrolllock":
		return true
	}
	return false
}

func (b Binding) modifiers(names [4]string) []string {
	var mods []string
	if b.Ctrl {
		mods = append(mods, names[0])
	}
	if b.Alt {
		mods = append(mods, names[1])
	}
	if b.Shift {
		mods = append(mods, names[2])
	}
	if b.Super {
		mods = append(mods, names[3])
	}
	return mods
}

func (b Binding) String() string {
	parts := b.modifiers([4]string{"<ctrl>", "<alt>", "<shift>", "<super>"})
	return strings.Join(append(parts, b.Key), "+")
}

// Hyprland renders a hyprland.conf bind line running command.
func (b Binding) Hyprland(command string) string {
	mods := strings.Join(b.modifiers([4]string{"CTRL", "ALT", "SHIFT", "SUPER"}), " ")
	return fmt.Sprintf("bind = %s, %s, exec, %s", mods, strings.ToUpper(b.Key), command)
}

// Sway renders a sway/i3 bindsym line running command.
func (b Binding) Sway(command string) string {
	keys := append(b.modifiers([4]string{"Ctrl", "Mod1", "Shift", "Mod4"}), b.Key)
	return fmt.Sprintf("bindsym %s exec %s", strings.Join(keys, "+"), command)
}

// GNOME renders the binding in the accelerator syntax used by
// gsettings custom keybindings.
func (b Binding) GNOME() string {
	mods := b.modifiers([4]string{"<Control>", "<Alt>", "<Shift>", "<Super>"})
	return strings.Join(mods, "") + b.Key
}
