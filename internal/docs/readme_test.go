package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/command"
	"filmklub/internal/command/core"
	"filmklub/internal/command/nick"
	"filmklub/internal/config"
	"filmklub/pkg/cmd"
)

func registry(t *testing.T) *cmd.Registry {
	t.Helper()
	reg := cmd.NewRegistry()
	require.NoError(t, command.Register(reg, &nick.NickCommand{}))
	require.NoError(t, command.Register(reg, &nick.NickMenuCommand{}))
	require.NoError(t, command.Register(reg, &core.HelpCommand{Registry: reg}))
	return reg
}

func TestCommandSections(t *testing.T) {
	got := CommandSections(registry(t), config.CategoryWeights)
	assert.Equal(t, "### 🕯️ Information\n\n"+
		"- **/help** - Get a list of available commands\n"+
		"\n### 📢 Utilities\n\n"+
		"- **Change nickname**\n"+
		"- **/nick** - Change a user's nickname\n", got)
}

func TestUpdateReadmeUsesTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(tmpl, []byte("# {{.AppName}}\n{{.CommandSections}}"), 0644))

	require.NoError(t, UpdateReadme(registry(t), config.CategoryWeights, "filmklub", tmpl, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# filmklub\n### 🕯️ Information")
}

func TestUpdateReadmeFallsBackToDefaultTemplate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, UpdateReadme(registry(t), config.CategoryWeights, "filmklub", filepath.Join(t.TempDir(), "missing.tmpl"), out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Commands")
	assert.Contains(t, string(data), "**/nick**")
}
