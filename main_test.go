package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/grantqa/cmd"
	"github.com/otherjamesbrown/grantqa/config"
	"github.com/otherjamesbrown/grantqa/pkg/buildinfo"
)

func execute(t *testing.T, deps *cmd.CommandDeps, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// isolate points the config directory at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("GRANTQA_CONFIG_DIR", t.TempDir())
	t.Setenv("GRANTQA_OUTPUT_FORMAT", "")
	t.Setenv("GRANTQA_LOG_LEVEL", "")
}

// TestRootCommand_HasCommands verifies the command tree.
func TestRootCommand_HasCommands(t *testing.T) {
	root := newRootCommand(cmd.DefaultDeps())

	want := []string{"dashboard", "search", "orgs", "grants", "issues", "duplicates", "serve", "db", "config", "version"}
	for _, name := range want {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
		assert.NotEmpty(t, c.GroupID, "%s should belong to a help group", name)
	}

	for _, flag := range []string{"config-dir", "output", "log-level", "log-json", "database-url", "demo"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, cmd.DefaultDeps(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "grantqa version "+buildinfo.Version)

	out, err = execute(t, cmd.DefaultDeps(), "version", "-o", "json")
	require.NoError(t, err)
	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, buildinfo.ServiceName, info.ServiceName)

	out, err = execute(t, cmd.DefaultDeps(), "version", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "service_name: grantqa")
}

// TestVersionCommand_IgnoresBrokenConfig verifies version runs before config loading.
func TestVersionCommand_IgnoresBrokenConfig(t *testing.T) {
	isolate(t)
	t.Setenv("GRANTQA_QUERY_TIMEOUT", "never")

	_, err := execute(t, cmd.DefaultDeps(), "version")
	assert.NoError(t, err)
}

func TestDemoDashboard(t *testing.T) {
	isolate(t)

	out, err := execute(t, cmd.DefaultDeps(), "--demo", "dashboard", "-o", "json")
	require.NoError(t, err)

	var sum map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 4, sum["total_organizations"])
	assert.Equal(t, 2, sum["pending_duplicates"])
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("output_format: yaml\n"), 0600))

	deps := cmd.DefaultDeps()
	out, err := execute(t, deps, "--config-dir", dir, "--demo", "dashboard")
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatYAML, deps.Config.OutputFormat)
	assert.Contains(t, out, "total_organizations: 4")

	deps = cmd.DefaultDeps()
	out, err = execute(t, deps, "--config-dir", dir, "--demo", "dashboard", "-o", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Data Quality"))
}

func TestInvalidOutputFlag(t *testing.T) {
	isolate(t)

	_, err := execute(t, cmd.DefaultDeps(), "--demo", "dashboard", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestInvalidEnvironmentFailsFast(t *testing.T) {
	isolate(t)
	t.Setenv("GRANTQA_QUERY_TIMEOUT", "never")

	_, err := execute(t, cmd.DefaultDeps(), "--demo", "dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRANTQA_QUERY_TIMEOUT")
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, loadDotEnv())
}

func TestLoadDotEnv_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GRANTQA_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("GRANTQA_DOTENV_PROBE"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRANTQA_DOTENV_PROBE=loaded\n"), 0600))

	require.NoError(t, loadDotEnv())
	assert.Equal(t, "loaded", os.Getenv("GRANTQA_DOTENV_PROBE"))
}
