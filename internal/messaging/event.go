// Package messaging defines the contract between the bridge and the
// underlying WhatsApp client, and the bus that carries its events.
package messaging

import "sync"

type EventKind string

// Lifecycle events consumed by the connection manager.
const (
	EventQR            EventKind = "qr"
	EventReady         EventKind = "ready"
	EventAuthenticated EventKind = "authenticated"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
)

// Domain events forwarded to webhook subscribers.
const (
	EventMessage       EventKind = "message"
	EventMessageCreate EventKind = "message_create"
	EventMessageAck    EventKind = "message_ack"
	EventGroupJoin     EventKind = "group_join"
	EventGroupLeave    EventKind = "group_leave"
	EventGroupUpdate   EventKind = "group_update"
)

// WebhookEvents is the fixed set of kinds delivered to subscribers.
var WebhookEvents = []EventKind{
	EventMessage,
	EventMessageCreate,
	EventMessageAck,
	EventGroupJoin,
	EventGroupLeave,
	EventGroupUpdate,
}

// Event is one emission from the client. Args keep the emitter's argument
// order: a *Message for message kinds, (*Message, Ack) for acks, a string
// for qr codes and disconnect reasons, an error for auth failures.
type Event struct {
	Kind EventKind
	Args []any
}

type Handler func(Event)

// Bus delivers every emitted event to each subscriber, synchronously and in
// subscription order. Handlers must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *Bus) Emit(kind EventKind, args ...any) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	evt := Event{Kind: kind, Args: args}
	for _, h := range handlers {
		h(evt)
	}
}
