package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "worker", "parse", "match", "batch"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "候选人ID")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad, "岗位ID")
		assert.Error(t, err, bad)
	}
}

func TestMatchRequiresTwoArgs(t *testing.T) {
	assert.Error(t, matchCmd.Args(matchCmd, []string{"1"}))
	assert.NoError(t, matchCmd.Args(matchCmd, []string{"1", "2"}))
}
