package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCmd()

	t.Run("registers subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, cmd := range root.Commands() {
			names[cmd.Name()] = true
		}
		assert.True(t, names["serve"])
		assert.True(t, names["status"])
	})

	t.Run("has global flags", func(t *testing.T) {
		assert.NotNil(t, root.PersistentFlags().Lookup("config"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
	})

	t.Run("version output", func(t *testing.T) {
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"--version"})
		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), version)
	})
}
