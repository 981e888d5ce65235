// Package formatter normalizes raw client event arguments into the stable
// shapes delivered to webhooks.
package formatter

import (
	"time"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

type MessageData struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	HasMedia  bool   `json:"hasMedia"`
}

type AckData struct {
	ID  string        `json:"id"`
	Ack messaging.Ack `json:"ack"`
	// Timestamp is when the ack was dispatched, in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Format normalizes args for event using the current time for acks.
func Format(event string, args ...any) any {
	return FormatAt(time.Now(), event, args...)
}

// FormatAt never fails: kinds without a normalized shape, and known kinds
// whose arguments are not of the expected types, return args as a list.
func FormatAt(now time.Time, event string, args ...any) any {
	switch messaging.EventKind(event) {
	case messaging.EventMessage, messaging.EventMessageCreate:
		if msg, ok := messageArg(args, 0); ok {
			return MessageData{
				ID:        msg.ID,
				Body:      msg.Body,
				From:      msg.From,
				To:        msg.To,
				Timestamp: msg.Timestamp,
				Type:      msg.Type,
				HasMedia:  msg.HasMedia,
			}
		}
	case messaging.EventMessageAck:
		msg, ok := messageArg(args, 0)
		if !ok || len(args) < 2 {
			break
		}
		if ack, ok := ackArg(args[1]); ok {
			return AckData{ID: msg.ID, Ack: ack, Timestamp: now.UnixMilli()}
		}
	}
	return passthrough(args)
}

func messageArg(args []any, i int) (messaging.Message, bool) {
	if len(args) <= i {
		return messaging.Message{}, false
	}
	switch m := args[i].(type) {
	case *messaging.Message:
		if m == nil {
			return messaging.Message{}, false
		}
		return *m, true
	case messaging.Message:
		return m, true
	}
	return messaging.Message{}, false
}

func ackArg(v any) (messaging.Ack, bool) {
	switch a := v.(type) {
	case messaging.Ack:
		return a, true
	case int:
		return messaging.Ack(a), true
	}
	return 0, false
}

func passthrough(args []any) []any {
	out := make([]any, len(args))
	copy(out, args)
	return out
}
