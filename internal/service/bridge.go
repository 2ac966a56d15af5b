package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/model"
	"github.com/telnet2/quickcmd/pkg/types"
)

// RequestError reports a malformed message.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// Handle answers one bridge message. It never panics; every failure is an
// error response.
func (s *Service) Handle(ctx context.Context, msg types.Message) (resp types.Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("type", string(msg.Type)).Bytes("stack", debug.Stack()).Msg("message handler panicked")
			resp = ErrorResponse(fmt.Errorf("internal error: %v", r))
		}
		resp.ID = msg.ID
	}()

	data, err := s.handle(ctx, msg)
	if err != nil {
		return ErrorResponse(err)
	}
	return types.Response{Type: types.ResponseResult, Data: data}
}

func (s *Service) handle(ctx context.Context, msg types.Message) (any, error) {
	switch msg.Type {
	case types.MsgAddNode:
		var p types.AddNodeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.AddNode(ctx, p)

	case types.MsgUpdateNode:
		var p types.UpdateNodeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.UpdateNode(ctx, p)

	case types.MsgDeleteNode:
		var p types.NodeRefParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.DeleteNode(ctx, p)

	case types.MsgMoveNode:
		var p types.MoveNodeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.MoveNode(ctx, p)

	case types.MsgConvertKind:
		var p types.ConvertKindParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.ConvertKind(ctx, p)

	case types.MsgConfirmConvert:
		var p types.ConfirmConvertParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.ConfirmConvert(ctx, p)

	case types.MsgUndo, types.MsgRedo:
		var p types.ScopeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if msg.Type == types.MsgUndo {
			return s.Undo(ctx, p.Scope)
		}
		return s.Redo(ctx, p.Scope)

	case types.MsgExecuteNode:
		var p types.ExecuteNodeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, badRequest("id is required")
		}
		res, _, err := s.Execute(ctx, p.ID, p.Wait)
		return res, err

	case types.MsgGetEffectiveTree:
		return s.Effective(), nil

	case types.MsgGetScope:
		var p types.ScopeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return s.ScopeState(p.Scope)

	case types.MsgHistory:
		var p types.ScopeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		entries, err := s.History(p.Scope)
		if err != nil {
			return nil, err
		}
		return map[string]any{"scope": p.Scope, "entries": entries}, nil

	case types.MsgReload:
		var p types.ScopeParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		changed, err := s.Reload(ctx, p.Scope)
		if err != nil {
			return nil, err
		}
		return map[string]any{"scope": p.Scope, "changed": changed}, nil

	case types.MsgRegisterCommands:
		var p types.RegisterCommandsParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if s.commands == nil {
			return nil, badRequest("this host does not accept client commands")
		}
		if p.ClientID == "" {
			return nil, badRequest("clientId is required")
		}
		s.commands.RegisterClient(p.ClientID, p.Commands)
		return map[string]any{"clientId": p.ClientID, "commands": p.Commands}, nil

	case types.MsgCommandResult:
		var p types.CommandResultParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if s.commands == nil {
			return nil, badRequest("this host does not accept client commands")
		}
		if !s.commands.SubmitResult(p.RequestID, p.Error) {
			return nil, badRequest("no pending command request %q", p.RequestID)
		}
		return map[string]any{"requestId": p.RequestID, "accepted": true}, nil

	case "":
		return nil, badRequest("message type is required")
	default:
		return nil, badRequest("unknown message type %q", msg.Type)
	}
}

func decode(msg types.Message, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return badRequest("invalid %s payload: %v", msg.Type, err)
	}
	return nil
}

// ErrorResponse maps err to a bridge error reply.
func ErrorResponse(err error) types.Response {
	return types.Response{Type: types.ResponseError, Data: ErrorData(err)}
}

// ErrorData maps err to its error code and fields.
func ErrorData(err error) types.ErrorData {
	var (
		verr  *model.ValidationError
		nferr *model.NotFoundError
		cerr  *model.CycleError
		xerr  *dispatch.ExecutionError
		rerr  *RequestError
	)
	switch {
	case errors.As(err, &verr):
		return types.ErrorData{
			Code:    types.ErrCodeValidation,
			Message: verr.Message,
			Field:   verr.Field,
			OwnerID: verr.OwnerID,
			NodeID:  verr.NodeID,
		}
	case errors.As(err, &nferr):
		return types.ErrorData{Code: types.ErrCodeNotFound, Message: err.Error(), NodeID: nferr.ID}
	case errors.As(err, &cerr):
		return types.ErrorData{Code: types.ErrCodeCycle, Message: err.Error(), NodeID: cerr.ID}
	case errors.As(err, &xerr):
		return types.ErrorData{Code: types.ErrCodeExecution, Message: err.Error(), NodeID: xerr.NodeID}
	case errors.As(err, &rerr):
		return types.ErrorData{Code: types.ErrCodeInvalidRequest, Message: err.Error()}
	default:
		return types.ErrorData{Code: types.ErrCodeInternal, Message: err.Error()}
	}
}
