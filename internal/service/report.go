package service

import (
	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/event"
)

// EventReporter publishes dispatch reports as execution.* events.
type EventReporter struct {
	bus *event.Bus
}

// NewEventReporter creates a reporter publishing to bus.
func NewEventReporter(bus *event.Bus) *EventReporter {
	return &EventReporter{bus: bus}
}

var statusEvents = map[dispatch.Status]event.EventType{
	dispatch.StatusStarted:   event.ExecutionStarted,
	dispatch.StatusSucceeded: event.ExecutionSucceeded,
	dispatch.StatusFailed:    event.ExecutionFailed,
	dispatch.StatusSkipped:   event.ExecutionSkipped,
}

func (r *EventReporter) Report(rep dispatch.Report) {
	typ, ok := statusEvents[rep.Status]
	if !ok {
		return
	}
	r.bus.Publish(event.Event{
		Type: typ,
		Data: event.ExecutionData{
			ExecutionID: rep.ExecutionID,
			NodeID:      rep.NodeID,
			Name:        rep.Name,
			Message:     rep.Message,
		},
	})
}
