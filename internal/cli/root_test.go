package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersFlagsAndSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	flags := cmd.PersistentFlags()

	for _, name := range []string{"config", "model", "model-dir", "language", "auto-download", "backend", "input", "engine-path", "engine-timeout", "auto-paste", "keep-newline", "copy-empty", "max-duration", "temp-dir"} {
		require.NotNil(t, flags.Lookup(name), "flag --%s", name)
	}
	require.Equal(t, "true", flags.Lookup("auto-download").DefValue)
	require.Equal(t, "false", flags.Lookup("auto-paste").DefValue)
	require.Equal(t, "2m0s", flags.Lookup("engine-timeout").DefValue)

	for key, name := range flagKeys {
		require.NotNil(t, flags.Lookup(name), "flag --%s bound to %s", name, key)
	}

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"run", "toggle", "cancel", "status", "transcribe", "setup", "devices", "version"})
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "toggle")
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "setup")
	require.Contains(t, out.String(), "devices")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "run", args: []string{"run", "--help"}, contains: "Run the dictation daemon"},
		{name: "toggle", args: []string{"toggle", "--help"}, contains: "Start or stop dictation"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file"},
		{name: "devices", args: []string{"devices", "--help"}, contains: "List recording devices"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			require.Contains(t, out.String(), tt.contains)
		})
	}
}
