// Package project locates the workspace a directory belongs to.
package project

import (
	"os"
	"path/filepath"
)

// Markers, in the order they are looked for at each level.
const (
	MarkerSettings = ".quickcmd"
	MarkerGit      = ".git"
)

// Info describes a detected workspace.
type Info struct {
	Root   string `json:"root"`   // workspace root
	Folder string `json:"folder"` // directory detection started from
	Marker string `json:"marker,omitempty"`
}

// Detect walks up from directory to the nearest folder holding a
// .quickcmd directory or a .git entry. Without either, the directory
// itself is the workspace.
func Detect(directory string) (*Info, error) {
	directory, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}

	info := &Info{Root: directory, Folder: directory}
	current := directory
	for {
		if isDir(filepath.Join(current, MarkerSettings)) {
			info.Root, info.Marker = current, MarkerSettings
			return info, nil
		}
		// .git is a file for worktrees and submodules
		if _, err := os.Stat(filepath.Join(current, MarkerGit)); err == nil {
			info.Root, info.Marker = current, MarkerGit
			return info, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return info, nil
		}
		current = parent
	}
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
