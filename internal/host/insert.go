package host

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/telnet2/quickcmd/internal/event"
)

// ClipboardInserter places text on the system clipboard. Hosts without a
// cursor, such as the CLI, use it for insertOnly commands.
type ClipboardInserter struct {
	write func(string) error
}

// NewClipboardInserter uses the system clipboard.
func NewClipboardInserter() *ClipboardInserter {
	return &ClipboardInserter{write: clipboard.WriteAll}
}

func (c *ClipboardInserter) InsertText(_ context.Context, text string) error {
	w := c.write
	if w == nil {
		if clipboard.Unsupported {
			return fmt.Errorf("clipboard is not supported on this system")
		}
		w = clipboard.WriteAll
	}
	if err := w(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// EventInserter hands text to connected clients as a text.inserted event.
type EventInserter struct {
	pub Publisher
}

func NewEventInserter(pub Publisher) *EventInserter {
	return &EventInserter{pub: pub}
}

func (e *EventInserter) InsertText(_ context.Context, text string) error {
	e.pub.Publish(event.Event{Type: event.TextInserted, Data: event.TextInsertedData{Text: text}})
	return nil
}
