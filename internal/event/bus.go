// Package event provides the pub/sub bus that carries tree, execution and
// terminal notifications to clients.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/tidwall/gjson"

	"github.com/telnet2/quickcmd/internal/logging"
)

// Topic is the watermill topic every event is mirrored to.
const Topic = "quickcmd.events"

// EventType represents the type of event.
type EventType string

const (
	TreeChanged        EventType = "tree.changed"
	ExecutionStarted   EventType = "execution.started"
	ExecutionSucceeded EventType = "execution.succeeded"
	ExecutionFailed    EventType = "execution.failed"
	ExecutionSkipped   EventType = "execution.skipped"
	TerminalOutput     EventType = "terminal.output"
	TextInserted       EventType = "text.inserted"
	SettingsChanged    EventType = "settings.changed"
	CommandRequest     EventType = "command.request"
)

// Event represents an event to be published. Seq increases monotonically
// per bus so stream consumers can restore publish order.
type Event struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus delivers events to direct subscribers and mirrors them as JSON
// messages onto a watermill gochannel for stream consumers.
type Bus struct {
	mu sync.RWMutex

	// pubMu keeps Seq order and mirror order the same.
	pubMu sync.Mutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID  uint64
	nextSeq uint64
	closed  bool
}

// NewBus creates a bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

// Subscribe registers fn for one event type and returns its unsubscribe
// function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribe(eventType, id) }
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// collect stamps the event and snapshots its subscribers.
func (b *Bus) collect(ev *Event) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false
	}

	ev.Seq = atomic.AddUint64(&b.nextSeq, 1)
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	subs := make([]Subscriber, 0, len(b.subscribers[ev.Type])+len(b.global))
	for _, entry := range b.subscribers[ev.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs, true
}

// stamp collects subscribers and mirrors ev while holding pubMu.
func (b *Bus) stamp(ev *Event) ([]Subscriber, bool) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	subs, ok := b.collect(ev)
	if ok {
		b.mirror(*ev)
	}
	return subs, ok
}

// Publish sends an event to every subscriber, each in its own goroutine.
func (b *Bus) Publish(ev Event) {
	subs, ok := b.stamp(&ev)
	if !ok {
		return
	}
	for _, sub := range subs {
		go sub(ev)
	}
}

// PublishSync calls every subscriber in the current goroutine before
// returning. Subscribers must not block or publish re-entrantly.
func (b *Bus) PublishSync(ev Event) {
	subs, ok := b.stamp(&ev)
	if !ok {
		return
	}
	for _, sub := range subs {
		sub(ev)
	}
}

func (b *Bus) mirror(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		// Streams wait for every Seq, so send the envelope without data.
		logging.Warn().Err(err).Str("type", string(ev.Type)).Msg("event data not mirrored")
		ev.Data = nil
		if payload, err = json.Marshal(ev); err != nil {
			return
		}
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		logging.Debug().Err(err).Msg("event mirror publish failed")
	}
}

// maxReorder bounds how many out-of-order messages a stream holds before
// it gives up on a missing Seq.
const maxReorder = 256

// Stream subscribes to the mirrored topic. Each value is the JSON encoding
// of an Event, delivered in Seq order starting with the first event
// published after the call. The channel is closed when ctx is done or the
// bus closes.
func (b *Bus) Stream(ctx context.Context) (<-chan []byte, error) {
	b.pubMu.Lock()
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	next := atomic.LoadUint64(&b.nextSeq) + 1
	b.pubMu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		held := make(map[uint64][]byte)
		for msg := range msgs {
			payload := append([]byte(nil), msg.Payload...)
			msg.Ack()

			seq := gjson.GetBytes(payload, "seq").Uint()
			if seq < next {
				continue
			}
			held[seq] = payload
			if len(held) > maxReorder {
				next = lowest(held)
			}
			for {
				p, ok := held[next]
				if !ok {
					break
				}
				delete(held, next)
				next++
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func lowest(held map[uint64][]byte) uint64 {
	var low uint64
	for seq := range held {
		if low == 0 || seq < low {
			low = seq
		}
	}
	return low
}

// Close drops every subscriber and closes the watermill channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
