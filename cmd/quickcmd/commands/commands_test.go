package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telnet2/quickcmd/internal/scope"
	"github.com/telnet2/quickcmd/pkg/types"
)

const workspaceSettings = `{
  // shared with the team
  "editor.tabSize": 2,
  "quickCommands.commands": [
    {"id": "build", "name": "$(tools) Build", "command": "echo built", "shortcut": "b", "terminalName": "build"},
    {"id": "deploy", "name": "Deploy", "group": [
      {"id": "stage", "name": "Stage", "command": "echo stage", "shortcut": "s"},
      {"id": "prod", "name": "Prod", "command": "echo prod", "shortcut": "p"}
    ]},
  ]
}`

func sampleTree() *scope.Effective {
	return scope.Resolve(scope.Layers{
		types.ScopeGlobal: {
			{ID: "a", Kind: types.KindCommand, Name: "Lint", Command: "golangci-lint run"},
			{ID: "g", Kind: types.KindGroup, Name: "Deploy", ExecuteSimultaneously: true, Children: []*types.Node{
				{ID: "s", Kind: types.KindCommand, Name: "Stage", Command: "deploy stage", Shortcut: "s"},
				{ID: "p", Kind: types.KindCommand, Name: "Prod", Command: "deploy prod", ExecutionMode: types.ModeInsertOnly},
			}},
		},
		types.ScopeLocal: {
			{ID: "t", Kind: types.KindCommand, Name: "Test", Command: "go test ./...", TerminalName: "tests"},
		},
	})
}

func TestCollect(t *testing.T) {
	entries, err := collect(sampleTree(), "")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Test", entries[0].Path)
	assert.Equal(t, types.ScopeLocal, entries[0].Scope)
	assert.Equal(t, "tests", entries[0].Terminal)
	assert.Equal(t, "Deploy/Prod", entries[3].Path)
	assert.Equal(t, 1, entries[3].Depth)
	assert.Equal(t, string(types.ModeInsertOnly), entries[3].Mode)
	assert.Empty(t, entries[3].Terminal)

	entries, err = collect(sampleTree(), "deploy/**")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "s", entries[0].ID)

	_, err = collect(sampleTree(), "[")
	assert.Error(t, err)
}

func TestWriteEntries(t *testing.T) {
	entries, err := collect(sampleTree(), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, entries, "yaml"))
	var fromYAML []listEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, entries, fromYAML)

	buf.Reset()
	require.NoError(t, writeEntries(&buf, entries, "text"))
	assert.Contains(t, buf.String(), "Deploy/ (simultaneous)")
	assert.Contains(t, buf.String(), "[s] Stage  deploy stage (terminal)")

	assert.Error(t, writeEntries(&buf, entries, "xml"))
}

// execute runs the root command against a temp workspace.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".quickcmd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".quickcmd", "settings.json"), []byte(workspaceSettings), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--workspace", ws}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list", "--output", "json", "--match", "")
	require.NoError(t, err)

	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, "Build", entries[0].Path)
	assert.Equal(t, types.ScopeWorkspace, entries[0].Scope)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "workspace ok")
	assert.Contains(t, out, "(2 root entries)")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "built")

	_, err = execute(t, "run", "missing")
	assert.ErrorContains(t, err, "no quick command matches")
}
