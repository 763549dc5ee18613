package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxdict/internal/cli"
)

func TestIsUsageError(t *testing.T) {
	t.Parallel()

	require.True(t, isUsageError(errors.New("unknown command \"bad\" for \"voxdict\"")))
	require.True(t, isUsageError(errors.New("unknown flag: --oops")))
	require.True(t, isUsageError(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, isUsageError(errors.New(`invalid argument "soon" for "--engine-timeout" flag: time: invalid duration "soon"`)))
	require.False(t, isUsageError(errors.New("download model \"small\": context deadline exceeded")))
	require.False(t, isUsageError(errors.New("voxdict daemon is not running (socket /run/user/1000/voxdict.sock); start it with `voxdict run`")))
	require.False(t, isUsageError(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "voxdict", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "voxdict", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "voxdict transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "voxdict toggle", helpHintTarget(root, []string{"toggle", "--verbose"}))
}
