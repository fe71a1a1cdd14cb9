package events

import (
	"log/slog"
	"sync"
)

// defaultSubscriberBuffer bounds how many undelivered events a single
// in-process subscriber may queue before the Bus starts dropping the
// oldest one to make room for the newest (spec.md §4.7: "fan-out... a slow
// subscriber must not stall the publisher").
const defaultSubscriberBuffer = 64

// Event is one domain event fanned out to in-process subscribers. Payload
// is one of the typed structs in payloads.go; Channel groups delivery the
// same way the WebSocket gateway's channels do (GlobalTasksChannel,
// TaskChannel(id), GlobalAgentsChannel).
type Event struct {
	Type    string
	Channel string
	Payload any
}

// subscriber is one in-process listener's bounded mailbox.
type subscriber struct {
	id     int
	ch     chan Event
	filter string // empty means "all channels"
}

// Bus fans out Events to in-process subscribers with a bounded, drop-oldest
// mailbox per subscriber: a stalled subscriber loses its oldest undelivered
// events rather than blocking the publisher (mirrors the WebSocket
// gateway's best-effort send in manager.go's Broadcast, generalized to
// internal Go channels instead of WebSocket frames).
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// NewBus constructs an empty Event Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscription is a handle returned by Subscribe; call Unsubscribe when
// the caller no longer wants events delivered.
type Subscription struct {
	bus *Bus
	id  int
	C   <-chan Event
}

// Unsubscribe removes this subscription from the Bus and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subs[s.id]; ok {
		close(sub.ch)
		delete(s.bus.subs, s.id)
	}
}

// Subscribe registers a new in-process listener. If channel is non-empty,
// only Events published to that exact channel are delivered; an empty
// channel subscribes to everything.
func (b *Bus) Subscribe(channel string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{id: id, ch: make(chan Event, defaultSubscriberBuffer), filter: channel}
	b.subs[id] = sub
	return &Subscription{bus: b, id: id, C: sub.ch}
}

// Publish fans an Event out to every matching subscriber. Delivery is
// non-blocking: a full mailbox has its oldest pending Event dropped to make
// room, so one slow subscriber never stalls another or the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter == "" || s.filter == evt.Channel {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			// mailbox full: drop the oldest queued event, then retry once.
			select {
			case <-s.ch:
				slog.Warn("event bus dropped oldest event for slow subscriber", "channel", evt.Channel, "subscriber_id", s.id)
			default:
			}
			select {
			case s.ch <- evt:
			default:
				slog.Warn("event bus could not deliver event even after drop", "channel", evt.Channel, "subscriber_id", s.id)
			}
		}
	}
}

// SubscriberCount reports how many in-process subscribers are registered.
// Used by tests and health checks.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
