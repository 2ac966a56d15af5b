// Package server exposes the quick command service over HTTP.
//
// POST /message takes the same {type, payload} messages the editor UI
// sends over the websocket at GET /ws. Read-only views of the tree and the
// terminals are plain GET routes, and GET /event streams every bus event
// as server-sent events.
package server
