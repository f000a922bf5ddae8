// Package event provides the in-process notification bus the session layer
// publishes on. Delivery is synchronous and in subscription order.
package event

import "sync"

// Event names published by the client.
const (
	Join         = "join"
	Leave        = "leave"
	Message      = "message"
	Invite       = "invite"
	DM           = "dm"
	Disconnected = "disconnected"
	Resumed      = "resumed"
)

// Handler receives the event payload. Payload types are fixed per event name:
// Message carries *MessagePayload, Invite *InvitePayload, DM *DMPayload,
// Disconnected *DisconnectedPayload; Join, Leave and Resumed carry nil.
type Handler func(payload any)

// Bus maps event names to ordered subscriber lists.
// Subscribing twice with the same handler fires it twice.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe appends a handler to the list for name.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Publish invokes every subscriber for name, in subscription order, on the
// calling goroutine. Publishing a name with no subscribers is a no-op.
func (b *Bus) Publish(name string, payload any) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.subs[name]))
	copy(handlers, b.subs[name])
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// MessagePayload is delivered on the message event.
type MessagePayload struct {
	Content       string
	Author        string
	SystemMessage bool
	ID            string
	TS            int64
}

// InvitePayload is delivered on the invite event.
type InvitePayload struct {
	Author   string
	RoomID   string
	RoomName string
}

// DMPayload is delivered on the dm event.
type DMPayload struct {
	Author  string
	Content string
	TS      int64
}

// DisconnectedPayload is delivered on the disconnected event.
type DisconnectedPayload struct {
	// Err is the socket error that ended the connection; nil when the close
	// was requested locally.
	Err error
	// Resuming is true when the client will attempt to reconnect.
	Resuming bool
}
