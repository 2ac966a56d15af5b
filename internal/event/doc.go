/*
Package event is the notification bus between the core service and its
clients.

Every event is delivered two ways. Direct subscribers registered with
Subscribe or SubscribeAll are called with the Go value, either in their own
goroutines (Publish) or inline (PublishSync). The event is also encoded as
JSON and published on the watermill gochannel topic "quickcmd.events";
Stream exposes that topic to consumers such as the websocket bridge,
reordered by Seq so each consumer sees events in publish order.

Event types:

  - tree.changed: a layer was mutated, undone, redone or reloaded
  - execution.started, execution.succeeded, execution.failed,
    execution.skipped: per-node dispatch reports
  - terminal.output: a terminal finished running a line
  - text.inserted: an insertOnly command produced text for the client
  - settings.changed: a settings file changed on disk
  - command.request: a client is asked to run an editor-API command

Subscribers called through PublishSync run in the publisher's goroutine.
They must return quickly and must not publish.

	unsubscribe := bus.SubscribeAll(func(e event.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	defer unsubscribe()
*/
package event
