package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/internal/event"
)

type chanPublisher chan event.Event

func (c chanPublisher) Publish(e event.Event) { c <- e }

func TestCommands_Local(t *testing.T) {
	cmds := NewCommands(nil)
	called := 0
	cmds.Register("editor.save", func(context.Context) error { called++; return nil })
	cmds.Register("editor.fail", func(context.Context) error { return errors.New("nope") })

	require.NoError(t, cmds.Execute(context.Background(), "editor.save"))
	assert.Equal(t, 1, called)
	assert.EqualError(t, cmds.Execute(context.Background(), "editor.fail"), "nope")
	assert.Equal(t, []string{"editor.fail", "editor.save"}, cmds.List())
}

func TestCommands_UnknownSuggests(t *testing.T) {
	cmds := NewCommands(nil)
	cmds.Register("workbench.action.files.save", func(context.Context) error { return nil })

	err := cmds.Execute(context.Background(), "workbench.action.file.save")
	require.Error(t, err)
	assert.True(t, IsUnknownCommand(err))
	assert.Contains(t, err.Error(), `did you mean "workbench.action.files.save"`)

	err = cmds.Execute(context.Background(), "zzz")
	assert.EqualError(t, err, `unknown command "zzz"`)
}

func TestCommands_Remote(t *testing.T) {
	pub := make(chanPublisher, 1)
	cmds := NewCommands(pub)
	cmds.RegisterClient("ui-1", []string{"editor.format"})

	done := make(chan error, 1)
	go func() { done <- cmds.Execute(context.Background(), "editor.format") }()

	var req event.CommandRequestData
	select {
	case e := <-pub:
		require.Equal(t, event.CommandRequest, e.Type)
		req = e.Data.(event.CommandRequestData)
	case <-time.After(time.Second):
		t.Fatal("no command.request published")
	}
	assert.Equal(t, "ui-1", req.ClientID)
	assert.Equal(t, "editor.format", req.Command)

	assert.True(t, cmds.SubmitResult(req.RequestID, ""))
	require.NoError(t, <-done)
	assert.False(t, cmds.SubmitResult(req.RequestID, ""), "answered requests are gone")
}

func TestCommands_RemoteErrorAndTimeout(t *testing.T) {
	pub := make(chanPublisher, 2)
	cmds := NewCommands(pub)
	cmds.RegisterClient("ui-1", []string{"a"})

	done := make(chan error, 1)
	go func() { done <- cmds.Execute(context.Background(), "a") }()
	req := (<-pub).Data.(event.CommandRequestData)
	cmds.SubmitResult(req.RequestID, "editor busy")
	assert.ErrorContains(t, <-done, "editor busy")

	cmds.SetTimeout(20 * time.Millisecond)
	err := cmds.Execute(context.Background(), "a")
	assert.ErrorContains(t, err, "did not answer")
}

func TestCommands_CleanupFailsPending(t *testing.T) {
	pub := make(chanPublisher, 1)
	cmds := NewCommands(pub)
	cmds.RegisterClient("ui-1", []string{"a"})

	done := make(chan error, 1)
	go func() { done <- cmds.Execute(context.Background(), "a") }()
	<-pub
	cmds.Cleanup("ui-1")

	assert.ErrorContains(t, <-done, "client disconnected")
	assert.Empty(t, cmds.List())
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "build", Suggest("biuld", []string{"build", "test"}))
	assert.Equal(t, "", Suggest("deploy", []string{"build", "test"}))
	assert.Equal(t, "", Suggest("x", nil))
}

func TestInserters(t *testing.T) {
	var copied string
	clip := &ClipboardInserter{write: func(s string) error { copied = s; return nil }}
	require.NoError(t, clip.InsertText(context.Background(), "rm -rf dist"))
	assert.Equal(t, "rm -rf dist", copied)

	pub := make(chanPublisher, 1)
	require.NoError(t, NewEventInserter(pub).InsertText(context.Background(), "git status"))
	e := <-pub
	assert.Equal(t, event.TextInserted, e.Type)
	assert.Equal(t, "git status", e.Data.(event.TextInsertedData).Text)
}
