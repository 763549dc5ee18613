package hotkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBindingDefault(t *testing.T) {
	t.Parallel()

	b, err := ParseBinding(DefaultBinding)
	require.NoError(t, err)
	require.Equal(t, Binding{Ctrl: true, Alt: true, Shift: true, Key: "h"}, b)
	require.Equal(t, DefaultBinding, b.String())
}

func TestParseBindingAliasesAndFunctionKeys(t *testing.T) {
	t.Parallel()

	b, err := ParseBinding("Win + F9")
	require.NoError(t, err)
	require.True(t, b.Super)
	require.Equal(t, "f9", b.Key)
	require.Equal(t, "<super>+f9", b.String())
}

func TestParseBindingRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "<ctrl>+<alt>", "ctrl++h", "ctrl+h+j", "ctrl+f99", "ctrl+enterprise"} {
		_, err := ParseBinding(input)
		require.Error(t, err, input)
	}
}

func TestBindingCompositorSnippets(t *testing.T) {
	t.Parallel()

	b, err := ParseBinding("<ctrl>+<alt>+<shift>+h")
	require.NoError(t, err)

	require.Equal(t, "bind = CTRL ALT SHIFT, H, exec, voxdict toggle", b.Hyprland("voxdict toggle"))
	require.Equal(t, "bindsym Ctrl+Mod1+Shift+h exec voxdict toggle", b.Sway("voxdict toggle"))
	require.Equal(t, "<Control><Alt><Shift>h", b.GNOME())
}
