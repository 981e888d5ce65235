package formatter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

func sampleMessage() *messaging.Message {
	return &messaging.Message{
		ID:        "3EB0C767D26A1D8E",
		Body:      "hi",
		From:      "5511999999999@c.us",
		To:        "5511888888888@c.us",
		Timestamp: 1700000000,
		Type:      "chat",
		HasMedia:  false,
		FromMe:    false,
	}
}

func TestFormatMessageKinds(t *testing.T) {
	for _, kind := range []string{"message", "message_create"} {
		t.Run(kind, func(t *testing.T) {
			got := Format(kind, sampleMessage())
			assert.Equal(t, MessageData{
				ID:        "3EB0C767D26A1D8E",
				Body:      "hi",
				From:      "5511999999999@c.us",
				To:        "5511888888888@c.us",
				Timestamp: 1700000000,
				Type:      "chat",
			}, got)
		})
	}
}

func TestFormatMessageIsPure(t *testing.T) {
	msg := sampleMessage()
	first := Format("message", msg)
	second := Format("message", msg)
	assert.Equal(t, first, second)
	assert.Equal(t, sampleMessage(), msg)
}

func TestFormatMessageWireShape(t *testing.T) {
	b, err := json.Marshal(Format("message", sampleMessage()))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "3EB0C767D26A1D8E",
		"body": "hi",
		"from": "5511999999999@c.us",
		"to": "5511888888888@c.us",
		"timestamp": 1700000000,
		"type": "chat",
		"hasMedia": false
	}`, string(b))
}

func TestFormatAckUsesDispatchTime(t *testing.T) {
	now := time.UnixMilli(1710000000123)
	got := FormatAt(now, "message_ack", sampleMessage(), messaging.AckRead)

	assert.Equal(t, AckData{ID: "3EB0C767D26A1D8E", Ack: messaging.AckRead, Timestamp: 1710000000123}, got)
}

func TestFormatAckAcceptsPlainInt(t *testing.T) {
	got := FormatAt(time.UnixMilli(5), "message_ack", *sampleMessage(), 2)
	assert.Equal(t, AckData{ID: "3EB0C767D26A1D8E", Ack: messaging.AckDevice, Timestamp: 5}, got)
}

func TestFormatFallsThroughToRawArgs(t *testing.T) {
	notification := &messaging.GroupNotification{ChatID: "1203@g.us", Type: "add"}

	tests := []struct {
		name  string
		event string
		args  []any
		want  []any
	}{
		{name: "group join", event: "group_join", args: []any{notification}, want: []any{notification}},
		{name: "group leave", event: "group_leave", args: []any{notification}, want: []any{notification}},
		{name: "group update", event: "group_update", args: []any{notification, "extra"}, want: []any{notification, "extra"}},
		{name: "unknown kind", event: "call", args: []any{"x", 1}, want: []any{"x", 1}},
		{name: "no args", event: "group_join", args: nil, want: []any{}},
		{name: "message without payload", event: "message", args: nil, want: []any{}},
		{name: "message with wrong type", event: "message", args: []any{"oops"}, want: []any{"oops"}},
		{name: "nil message pointer", event: "message_create", args: []any{(*messaging.Message)(nil)}, want: []any{(*messaging.Message)(nil)}},
		{name: "ack missing level", event: "message_ack", args: []any{sampleMessage()}, want: []any{sampleMessage()}},
		{name: "ack with wrong level type", event: "message_ack", args: []any{sampleMessage(), "read"}, want: []any{sampleMessage(), "read"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tc.want, Format(tc.event, tc.args...))
			})
		})
	}
}
