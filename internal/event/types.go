package event

import "github.com/telnet2/quickcmd/pkg/types"

// TreeChangedData is the data for tree.changed events.
type TreeChangedData struct {
	Scope  types.Scope `json:"scope"`
	Op     string      `json:"op"`
	NodeID string      `json:"nodeId,omitempty"`
	Saved  bool        `json:"saved"`
}

// ExecutionData is the data for execution.* events.
type ExecutionData struct {
	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId"`
	Name        string `json:"name"`
	Message     string `json:"message,omitempty"`
}

// TerminalOutputData is the data for terminal.output events.
type TerminalOutputData struct {
	Terminal string `json:"terminal"`
	Command  string `json:"command,omitempty"`
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// TextInsertedData is the data for text.inserted events.
type TextInsertedData struct {
	Text string `json:"text"`
}

// SettingsChangedData is the data for settings.changed events.
type SettingsChangedData struct {
	Scope types.Scope `json:"scope"`
	Path  string      `json:"path"`
}

// CommandRequestData asks a client to run one of its registered
// editor-API commands and answer with commandResult.
type CommandRequestData struct {
	RequestID string `json:"requestId"`
	ClientID  string `json:"clientId"`
	Command   string `json:"command"`
}
