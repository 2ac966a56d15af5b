package types

import "encoding/json"

// MessageType names an inbound bridge message.
type MessageType string

const (
	MsgAddNode          MessageType = "addNode"
	MsgUpdateNode       MessageType = "updateNode"
	MsgDeleteNode       MessageType = "deleteNode"
	MsgMoveNode         MessageType = "moveNode"
	MsgConvertKind      MessageType = "convertKind"
	MsgConfirmConvert   MessageType = "confirmConvert"
	MsgExecuteNode      MessageType = "executeNode"
	MsgUndo             MessageType = "undo"
	MsgRedo             MessageType = "redo"
	MsgGetEffectiveTree MessageType = "getEffectiveTree"
	MsgGetScope         MessageType = "getScope"
	MsgHistory          MessageType = "history"
	MsgReload           MessageType = "reload"
	MsgRegisterCommands MessageType = "registerCommands"
	MsgCommandResult    MessageType = "commandResult"
)

// Message is an inbound request from the UI collaborator. ID is optional
// and echoed on the reply so clients can match concurrent requests.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response types.
const (
	ResponseResult = "result"
	ResponseError  = "error"
	ResponseEvent  = "event"
)

// Response is an outbound reply.
type Response struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"` // "result" | "error" | "event"
	Data any    `json:"data"`
}

// ErrorData is the data of an error response.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Error codes
const (
	ErrCodeValidation     = "VALIDATION"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeCycle          = "CYCLE"
	ErrCodeExecution      = "EXECUTION"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NodePayload carries the editable fields of a node. Extra is merged into
// the node's unknown keys: keys not named are kept, and a null value
// removes the key.
type NodePayload struct {
	Kind                  Kind                       `json:"kind,omitempty"`
	Name                  string                     `json:"name"`
	Command               string                     `json:"command,omitempty"`
	ExecutionMode         ExecutionMode              `json:"executionMode,omitempty"`
	TerminalName          string                     `json:"terminalName,omitempty"`
	Shortcut              string                     `json:"shortcut,omitempty"`
	Color                 string                     `json:"color,omitempty"`
	ExecuteSimultaneously bool                       `json:"executeSimultaneously,omitempty"`
	Children              []NodePayload              `json:"group,omitempty"`
	Extra                 map[string]json.RawMessage `json:"extra,omitempty"`
}

// AddNodeParams is the payload of addNode.
type AddNodeParams struct {
	Scope    Scope       `json:"scope"`
	ParentID string      `json:"parentId,omitempty"`
	Node     NodePayload `json:"node"`
}

// UpdateNodeParams is the payload of updateNode.
type UpdateNodeParams struct {
	Scope Scope       `json:"scope"`
	ID    string      `json:"id"`
	Node  NodePayload `json:"node"`
}

// NodeRefParams is the payload of deleteNode and other id-only messages.
type NodeRefParams struct {
	Scope Scope  `json:"scope"`
	ID    string `json:"id"`
}

// MoveNodeParams is the payload of moveNode.
type MoveNodeParams struct {
	Scope       Scope  `json:"scope"`
	ID          string `json:"id"`
	NewParentID string `json:"newParentId,omitempty"`
	NewIndex    int    `json:"newIndex"`
}

// ConvertKindParams is the payload of convertKind.
type ConvertKindParams struct {
	Scope  Scope  `json:"scope"`
	ID     string `json:"id"`
	Target Kind   `json:"target"`
}

// ConfirmConvertParams is the payload of confirmConvert.
type ConfirmConvertParams struct {
	Scope   Scope  `json:"scope"`
	Token   string `json:"token"`
	Confirm bool   `json:"confirm"`
}

// ScopeParams is the payload of undo, redo, getScope, history and reload.
type ScopeParams struct {
	Scope Scope `json:"scope"`
}

// ExecuteNodeParams is the payload of executeNode. ID is looked up in the
// effective tree. With Wait the reply is sent after every child finished.
type ExecuteNodeParams struct {
	ID   string `json:"id"`
	Wait bool   `json:"wait,omitempty"`
}

// RegisterCommandsParams announces the editor-API commands a connected
// client can run. An empty list removes all of the client's commands.
type RegisterCommandsParams struct {
	ClientID string   `json:"clientId"`
	Commands []string `json:"commands"`
}

// CommandResultParams answers a command.request event.
type CommandResultParams struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}
