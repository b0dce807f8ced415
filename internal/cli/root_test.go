package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "taskcal", cmd.Use)
	assert.Contains(t, cmd.Long, "local store")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"task", "list"},
		{"task", "show"},
		{"task", "create"},
		{"task", "update"},
		{"task", "delete"},
		{"attach", "add"},
		{"attach", "list"},
		{"attach", "rm"},
		{"attach", "save"},
		{"attach", "orphans"},
		{"attach", "watch"},
		{"store", "keys"},
		{"store", "info"},
		{"store", "clear"},
		{"serve"},
		{"config", "init"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	for _, name := range []string{"config", "api-url", "store"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestTaskCreateFlags(t *testing.T) {
	cmd := NewRootCommand()
	createCmd, _, err := cmd.Find([]string{"task", "create"})
	require.NoError(t, err)

	priority := createCmd.Flags().Lookup("priority")
	require.NotNil(t, priority)
	assert.Equal(t, "3", priority.DefValue)

	status := createCmd.Flags().Lookup("status")
	require.NotNil(t, status)
	assert.Equal(t, "pending", status.DefValue)
}

func TestAttachWatchFlags(t *testing.T) {
	cmd := NewRootCommand()
	watchCmd, _, err := cmd.Find([]string{"attach", "watch"})
	require.NoError(t, err)

	pattern := watchCmd.Flags().Lookup("pattern")
	require.NotNil(t, pattern)
	assert.Equal(t, "*", pattern.DefValue)
	require.NotNil(t, watchCmd.Flags().Lookup("task"))
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	addr := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, addr)
	assert.Equal(t, "", addr.DefValue)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
}
