package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/journal"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/model"
	"github.com/telnet2/quickcmd/internal/scope"
	"github.com/telnet2/quickcmd/pkg/types"
)

// MutationResult is returned by every edit, undo and redo.
type MutationResult struct {
	Scope      types.Scope             `json:"scope"`
	ID         string                  `json:"id,omitempty"`
	Changed    bool                    `json:"changed"`
	Saved      bool                    `json:"saved"`
	Message    string                  `json:"message,omitempty"`
	CanUndo    bool                    `json:"canUndo"`
	CanRedo    bool                    `json:"canRedo"`
	Conversion *model.ConversionResult `json:"conversion,omitempty"`
}

// AddNode creates a node in one layer.
func (s *Service) AddNode(ctx context.Context, p types.AddNodeParams) (MutationResult, error) {
	return s.mutate(ctx, p.Scope, "addNode", "", func(t *model.Tree) (string, error) {
		return t.Add(p.ParentID, p.Node)
	})
}

// UpdateNode edits a node's fields.
func (s *Service) UpdateNode(ctx context.Context, p types.UpdateNodeParams) (MutationResult, error) {
	return s.mutate(ctx, p.Scope, "updateNode", p.ID, func(t *model.Tree) (string, error) {
		return p.ID, t.Update(p.ID, p.Node)
	})
}

// DeleteNode removes a node and its subtree.
func (s *Service) DeleteNode(ctx context.Context, p types.NodeRefParams) (MutationResult, error) {
	return s.mutate(ctx, p.Scope, "deleteNode", p.ID, func(t *model.Tree) (string, error) {
		return p.ID, t.Delete(p.ID)
	})
}

// MoveNode reorders or reparents a node within its layer.
func (s *Service) MoveNode(ctx context.Context, p types.MoveNodeParams) (MutationResult, error) {
	return s.mutate(ctx, p.Scope, "moveNode", p.ID, func(t *model.Tree) (string, error) {
		return p.ID, t.Move(p.ID, p.NewParentID, p.NewIndex)
	})
}

// ConvertKind switches a node between command and group. Converting a
// group with children only returns a confirmation token.
func (s *Service) ConvertKind(ctx context.Context, p types.ConvertKindParams) (MutationResult, error) {
	var conv model.ConversionResult
	res, err := s.mutate(ctx, p.Scope, "convertKind", p.ID, func(t *model.Tree) (string, error) {
		var err error
		conv, err = t.ConvertKind(p.ID, p.Target)
		return p.ID, err
	})
	if err != nil {
		return res, err
	}
	if conv.RequiresConfirmation {
		res.Conversion = &conv
	}
	return res, nil
}

// ConfirmConvert accepts or declines a pending conversion.
func (s *Service) ConfirmConvert(ctx context.Context, p types.ConfirmConvertParams) (MutationResult, error) {
	return s.mutate(ctx, p.Scope, "confirmConvert", "", func(t *model.Tree) (string, error) {
		return "", t.ConfirmConvert(p.Token, p.Confirm)
	})
}

// Undo restores the layer to its state before the latest recorded edit.
func (s *Service) Undo(ctx context.Context, sc types.Scope) (MutationResult, error) {
	return s.travel(ctx, sc, "undo", (*journal.Journal).Undo)
}

// Redo re-applies the latest undone edit.
func (s *Service) Redo(ctx context.Context, sc types.Scope) (MutationResult, error) {
	return s.travel(ctx, sc, "redo", (*journal.Journal).Redo)
}

func (s *Service) travel(ctx context.Context, sc types.Scope, op string, step func(*journal.Journal) (journal.Snapshot, bool)) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layer(sc)
	if err != nil {
		return MutationResult{}, err
	}
	snap, ok := step(l.journal)
	if !ok {
		return s.result(sc, l, "", false), nil
	}

	l.tree.Restore(snap)
	s.persist(ctx, sc, l)
	s.recompute()
	s.publishChanged(sc, op, "", l.saved)
	return s.result(sc, l, "", true), nil
}

// ScopeState describes one layer.
type ScopeState struct {
	Scope   types.Scope   `json:"scope"`
	Path    string        `json:"path,omitempty"`
	Nodes   []*types.Node `json:"nodes"`
	Saved   bool          `json:"saved"`
	Message string        `json:"message,omitempty"`
	CanUndo bool          `json:"canUndo"`
	CanRedo bool          `json:"canRedo"`
}

// ScopeState returns a layer with its save and journal state.
func (s *Service) ScopeState(sc types.Scope) (ScopeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layer(sc)
	if err != nil {
		return ScopeState{}, err
	}
	nodes := l.tree.Roots()
	if nodes == nil {
		nodes = []*types.Node{}
	}
	undo, redo := l.journal.Len()
	st := ScopeState{
		Scope:   sc,
		Path:    s.store.Path(sc),
		Nodes:   nodes,
		Saved:   l.saved,
		CanUndo: undo > 0,
		CanRedo: redo > 0,
	}
	if !l.saved {
		st.Message = l.problem
	}
	return st, nil
}

// History returns the layer's undo stack, newest first.
func (s *Service) History(sc types.Scope) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layer(sc)
	if err != nil {
		return nil, err
	}
	return l.journal.History(), nil
}

// Reload re-reads a layer from the store. It reports false when the
// stored layer equals the one in memory, which is the case for the
// service's own saves. A real external change replaces the layer, drops
// any unsaved draft and clears the layer's journal.
func (s *Service) Reload(ctx context.Context, sc types.Scope) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layer(sc)
	if err != nil {
		return false, err
	}
	nodes, err := s.store.Read(ctx, sc)
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", sc, err)
	}
	if sameNodes(nodes, l.tree.Roots()) {
		return false, nil
	}
	if !l.saved {
		logging.Warn().Str("scope", string(sc)).Msg("discarding unsaved layer changes after external edit")
	}

	l.tree = model.New(nodes, s.treeOpts...)
	l.journal.Reset()
	l.saved = true
	l.problem = ""
	s.recompute()
	s.publishChanged(sc, "reload", "", true)
	logging.Info().Str("scope", string(sc)).Int("roots", len(nodes)).Msg("layer reloaded")
	return true, nil
}

// ExecuteResult reports a started (or, with wait, finished) execution.
type ExecuteResult struct {
	ExecutionID string      `json:"executionId"`
	NodeID      string      `json:"nodeId"`
	Scope       types.Scope `json:"scope"`
	Done        bool        `json:"done"`
}

// Execute dispatches a node of the effective tree. With wait it returns
// after every part of the execution finished and reports failures as an
// error; otherwise failures arrive as execution.failed events.
func (s *Service) Execute(ctx context.Context, id string, wait bool) (ExecuteResult, *dispatch.Execution, error) {
	if s.dispatcher == nil {
		return ExecuteResult{}, nil, &dispatch.ExecutionError{NodeID: id, Name: id, Err: errors.New("execution is not available in this host")}
	}
	eff := s.Effective()
	m, ok := eff.Find(id)
	if !ok {
		return ExecuteResult{}, nil, &model.NotFoundError{ID: id}
	}

	runCtx := ctx
	if !wait {
		// The request context ends with the reply; the commands must not.
		runCtx = context.WithoutCancel(ctx)
	}
	exec := s.dispatcher.Dispatch(runCtx, m.Node)
	res := ExecuteResult{ExecutionID: exec.ID, NodeID: m.Node.ID, Scope: m.Scope}
	if !wait {
		return res, exec, nil
	}
	err := exec.Wait()
	res.Done = true
	return res, exec, err
}

// Find looks a node up in the effective tree by id, falling back to its
// label.
func (s *Service) Find(ref string) (scope.Match, bool) {
	eff := s.Effective()
	if m, ok := eff.Find(ref); ok {
		return m, true
	}
	return eff.FindByName(ref)
}
