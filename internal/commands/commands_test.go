package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	require.NotNil(t, rootCmd)

	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range []string{"serve", "backfill", "seed"} {
		assert.True(t, registered[name], "command %q should be registered", name)
	}
}

func TestBackfillRequiredFlags(t *testing.T) {
	for _, name := range []string{"project", "from"} {
		flag := backfillCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "flag %q should exist", name)
	}
	assert.NotNil(t, backfillCmd.Flags().Lookup("to"))
}

func TestRootHasConfigFlag(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
