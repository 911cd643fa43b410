package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "racerepro", cmd.Use)
	assert.Contains(t, cmd.Long, "interleaving")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"explore", "replay", "history", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFileFlag := cmd.PersistentFlags().Lookup("log-file")
	require.NotNil(t, logFileFlag)
	assert.Equal(t, "", logFileFlag.DefValue)
}

func TestScenarioCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"explore", "replay"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			assert.NotNil(t, sub.Flags().Lookup("db"))
			// The wait bounds are fixed; nothing on the command line changes them.
			assert.Nil(t, sub.Flags().Lookup("short-bound"))
			assert.Nil(t, sub.Flags().Lookup("long-bound"))
		})
	}

	explore, _, err := cmd.Find([]string{"explore"})
	require.NoError(t, err)
	assert.NotNil(t, explore.Flags().Lookup("max-iterations"))

	replay, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)
	assert.NotNil(t, replay.Flags().Lookup("repro"))
}

func TestScenarioCommandsRejectBoundFlags(t *testing.T) {
	for _, name := range []string{"explore", "replay"} {
		t.Run(name, func(t *testing.T) {
			cmd := NewRootCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{name, "--short-bound", "1ms", "../harness/testdata/scenarios/two_threads.yaml"})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown flag: --short-bound")
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "validate", "../harness/testdata/scenarios/two_threads.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
