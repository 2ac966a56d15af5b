package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/telnet2/quickcmd/pkg/types"
)

const (
	appName           = "quickcmd"
	settingsDir       = ".quickcmd"
	settingsFile      = "settings.json"
	localSettingsFile = "settings.local.json"
)

// Paths contains the standard per-user directories.
type Paths struct {
	Config string // ~/.config/quickcmd
	State  string // ~/.local/state/quickcmd
}

// GetPaths returns the standard paths, honoring the XDG variables.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), appName),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), appName),
	}
}

// LogDir is where log files go when file logging is on.
func (p *Paths) LogDir() string {
	return filepath.Join(p.State, "log")
}

// SettingsPaths names the settings file of each scope. An empty entry
// means the scope has no backing file (no workspace or folder open).
type SettingsPaths struct {
	Global    string
	Workspace string
	Local     string
}

// DefaultSettingsPaths builds the conventional locations for a workspace
// root and the folder of the active file.
func DefaultSettingsPaths(workspace, folder string) SettingsPaths {
	sp := SettingsPaths{Global: filepath.Join(GetPaths().Config, settingsFile)}
	if workspace != "" {
		sp.Workspace = filepath.Join(workspace, settingsDir, settingsFile)
	}
	if folder != "" {
		sp.Local = filepath.Join(folder, settingsDir, localSettingsFile)
	}
	return sp
}

// For returns the path of one scope.
func (sp SettingsPaths) For(scope types.Scope) string {
	switch scope {
	case types.ScopeGlobal:
		return sp.Global
	case types.ScopeWorkspace:
		return sp.Workspace
	case types.ScopeLocal:
		return sp.Local
	}
	return ""
}

// ScopeOf maps a file path back to its scope.
func (sp SettingsPaths) ScopeOf(path string) (types.Scope, bool) {
	clean := filepath.Clean(path)
	for _, s := range types.Scopes {
		if p := sp.For(s); p != "" && filepath.Clean(p) == clean {
			return s, true
		}
	}
	return "", false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}
