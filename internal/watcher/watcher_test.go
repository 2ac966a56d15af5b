package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/pkg/types"
)

func TestNew_NoDirectories(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	w, err := New(config.DefaultSettingsPaths(filepath.Join(root, "missing"), ""), func(types.Scope, string) {})
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestWatcher_ReportsScope(t *testing.T) {
	root := t.TempDir()
	wsDir := filepath.Join(root, ".quickcmd")
	require.NoError(t, os.MkdirAll(wsDir, 0o755))

	paths := config.SettingsPaths{Workspace: filepath.Join(wsDir, "settings.json")}
	changes := make(chan types.Scope, 4)
	w, err := New(paths, func(s types.Scope, _ string) { changes <- s })
	require.NoError(t, err)
	require.NotNil(t, w)
	w.SetDebounce(50 * time.Millisecond)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(wsDir, "unrelated.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(paths.Workspace, []byte(`{"quickCommands.commands": []}`), 0o644))

	select {
	case s := <-changes:
		assert.Equal(t, types.ScopeWorkspace, s)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	// A burst of writes settles into a single callback.
	select {
	case s := <-changes:
		t.Fatalf("unexpected second change for %s", s)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	root := t.TempDir()
	paths := config.SettingsPaths{Local: filepath.Join(root, "settings.local.json")}
	w, err := New(paths, func(types.Scope, string) {})
	require.NoError(t, err)
	require.NotNil(t, w)
	w.Start()
	require.NoError(t, w.Stop())
}
