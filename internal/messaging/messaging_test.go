package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "a:"+string(e.Kind)) })
	bus.Subscribe(func(e Event) { got = append(got, "b:"+string(e.Kind)) })

	bus.Emit(EventReady)
	bus.Emit(EventQR, "code-1")

	assert.Equal(t, []string{"a:ready", "b:ready", "a:qr", "b:qr"}, got)
}

func TestBusCarriesArgs(t *testing.T) {
	bus := NewBus()
	var evt Event
	bus.Subscribe(func(e Event) { evt = e })

	msg := &Message{ID: "m1"}
	bus.Emit(EventMessageAck, msg, AckRead)

	assert.Equal(t, EventMessageAck, evt.Kind)
	assert.Equal(t, []any{msg, AckRead}, evt.Args)
}

func TestBusSubscribeDuringEmit(t *testing.T) {
	bus := NewBus()
	var calls int
	bus.Subscribe(func(Event) {
		calls++
		bus.Subscribe(func(Event) { calls++ })
	})

	require.NotPanics(t, func() { bus.Emit(EventReady) })
	assert.Equal(t, 1, calls)
}

func TestBusConcurrentEmit(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(EventMessage)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestParseChatID(t *testing.T) {
	tests := []struct {
		in      string
		want    types.JID
		wantErr bool
	}{
		{in: "5511999999999@c.us", want: types.NewJID("5511999999999", types.DefaultUserServer)},
		{in: "5511999999999", want: types.NewJID("5511999999999", types.DefaultUserServer)},
		{in: "+5511999999999", want: types.NewJID("5511999999999", types.DefaultUserServer)},
		{in: "5511999999999@s.whatsapp.net", want: types.NewJID("5511999999999", types.DefaultUserServer)},
		{in: "120363025246125486@g.us", want: types.NewJID("120363025246125486", types.GroupServer)},
		{in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseChatID(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChatID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWebID(t *testing.T) {
	assert.Equal(t, "5511999999999@c.us", WebID(types.NewJID("5511999999999", types.DefaultUserServer)))
	assert.Equal(t, "120363025246125486@g.us", WebID(types.NewJID("120363025246125486", types.GroupServer)))
}

func TestReceiptAck(t *testing.T) {
	ack, ok := receiptAck(types.ReceiptTypeDelivered)
	assert.True(t, ok)
	assert.Equal(t, AckDevice, ack)

	ack, ok = receiptAck(types.ReceiptTypeRead)
	assert.True(t, ok)
	assert.Equal(t, AckRead, ack)

	ack, ok = receiptAck(types.ReceiptTypePlayed)
	assert.True(t, ok)
	assert.Equal(t, AckPlayed, ack)

	_, ok = receiptAck(types.ReceiptTypeRetry)
	assert.False(t, ok)
}

func TestMessageType(t *testing.T) {
	assert.Equal(t, "chat", messageType(types.MessageInfo{Type: "text"}))
	assert.Equal(t, "image", messageType(types.MessageInfo{Type: "media", MediaType: "image"}))
	assert.Equal(t, "unknown", messageType(types.MessageInfo{Type: "media"}))
}

func recordBus() (*Bus, *[]Event) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) })
	return bus, &got
}

func kinds(evts []Event) []EventKind {
	out := make([]EventKind, len(evts))
	for i, e := range evts {
		out[i] = e.Kind
	}
	return out
}

var (
	ownJID  = types.NewJID("5511999999999", types.DefaultUserServer)
	peerJID = types.NewJID("5511888888888", types.DefaultUserServer)
	groupID = types.NewJID("120363025246125486", types.GroupServer)
)

func TestEmitIncomingMessage(t *testing.T) {
	bus, got := recordBus()
	w := &Whatsmeow{bus: bus}
	at := time.Unix(1700000000, 0)

	w.emit(WebID(ownJID), &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: peerJID, Sender: peerJID},
			ID:            "m1",
			Type:          "text",
			Timestamp:     at,
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	})

	require.Equal(t, []EventKind{EventMessage, EventMessageCreate}, kinds(*got))
	msg, ok := (*got)[0].Args[0].(*Message)
	require.True(t, ok)
	assert.Equal(t, &Message{
		ID:        "m1",
		Body:      "hello",
		From:      "5511888888888@c.us",
		To:        "5511999999999@c.us",
		Timestamp: at.Unix(),
		Type:      "chat",
	}, msg)
	assert.Same(t, msg, (*got)[1].Args[0])
}

func TestEmitOwnMessageOnlyCreates(t *testing.T) {
	bus, got := recordBus()
	w := &Whatsmeow{bus: bus}

	w.emit(WebID(ownJID), &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: peerJID, Sender: ownJID, IsFromMe: true},
			ID:            "m2",
			Type:          "text",
			Timestamp:     time.Unix(1700000001, 0),
		},
		Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("sent from phone")}},
	})

	require.Equal(t, []EventKind{EventMessageCreate}, kinds(*got))
	msg := (*got)[0].Args[0].(*Message)
	assert.True(t, msg.FromMe)
	assert.Equal(t, "sent from phone", msg.Body)
	assert.Equal(t, "5511999999999@c.us", msg.From)
	assert.Equal(t, "5511888888888@c.us", msg.To)
}

func TestEmitMediaMessage(t *testing.T) {
	bus, got := recordBus()
	w := &Whatsmeow{bus: bus}

	w.emit(WebID(ownJID), &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: groupID, Sender: peerJID, IsGroup: true},
			ID:            "m3",
			Type:          "media",
			MediaType:     "image",
			Timestamp:     time.Unix(1700000002, 0),
		},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")}},
	})

	require.Equal(t, []EventKind{EventMessage, EventMessageCreate}, kinds(*got))
	msg := (*got)[0].Args[0].(*Message)
	assert.True(t, msg.HasMedia)
	assert.Equal(t, "image", msg.Type)
	assert.Equal(t, "look", msg.Body)
	assert.Equal(t, "120363025246125486@g.us", msg.From)
}

func TestEmitReceiptPerMessageID(t *testing.T) {
	bus, got := recordBus()
	w := &Whatsmeow{bus: bus}

	w.emit("", &events.Receipt{
		MessageSource: types.MessageSource{Chat: peerJID},
		MessageIDs:    []types.MessageID{"a", "b"},
		Timestamp:     time.Unix(1700000003, 0),
		Type:          types.ReceiptTypeRead,
	})
	w.emit("", &events.Receipt{
		MessageSource: types.MessageSource{Chat: peerJID},
		MessageIDs:    []types.MessageID{"c"},
		Type:          types.ReceiptTypeRetry,
	})

	require.Equal(t, []EventKind{EventMessageAck, EventMessageAck}, kinds(*got))
	for i, id := range []string{"a", "b"} {
		msg := (*got)[i].Args[0].(*Message)
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, "5511888888888@c.us", msg.From)
		assert.Equal(t, AckRead, (*got)[i].Args[1])
	}
}

func TestEmitConnectionEvents(t *testing.T) {
	tests := []struct {
		name string
		evt  interface{}
		kind EventKind
		args []any
	}{
		{"pair success", &events.PairSuccess{ID: types.NewADJID("5511999999999", 0, 12)}, EventAuthenticated, []any{"5511999999999@c.us"}},
		{"connected", &events.Connected{}, EventReady, nil},
		{"logged out", &events.LoggedOut{}, EventDisconnected, []any{"LOGOUT"}},
		{"stream replaced", &events.StreamReplaced{}, EventDisconnected, []any{"CONFLICT"}},
		{"disconnected", &events.Disconnected{}, EventDisconnected, []any{"NAVIGATION"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus, got := recordBus()
			w := &Whatsmeow{bus: bus}

			w.emit("", tc.evt)

			require.Len(t, *got, 1)
			assert.Equal(t, tc.kind, (*got)[0].Kind)
			assert.Equal(t, tc.args, (*got)[0].Args)
		})
	}
}

func TestEmitGroupInfo(t *testing.T) {
	at := time.Unix(1700000004, 0)
	sender := peerJID

	tests := []struct {
		name       string
		info       events.GroupInfo
		kinds      []EventKind
		notes      []string
		body       string
		recipients []string
	}{
		{
			name:       "join",
			info:       events.GroupInfo{Join: []types.JID{ownJID}},
			kinds:      []EventKind{EventGroupJoin},
			notes:      []string{"add"},
			recipients: []string{"5511999999999@c.us"},
		},
		{
			name:       "leave",
			info:       events.GroupInfo{Leave: []types.JID{peerJID}},
			kinds:      []EventKind{EventGroupLeave},
			notes:      []string{"remove"},
			recipients: []string{"5511888888888@c.us"},
		},
		{
			name:  "join and leave",
			info:  events.GroupInfo{Join: []types.JID{ownJID}, Leave: []types.JID{peerJID}},
			kinds: []EventKind{EventGroupJoin, EventGroupLeave},
			notes: []string{"add", "remove"},
		},
		{
			name:  "subject",
			info:  events.GroupInfo{Name: &types.GroupName{Name: "Team"}},
			kinds: []EventKind{EventGroupUpdate},
			notes: []string{"subject"},
			body:  "Team",
		},
		{
			name:  "description",
			info:  events.GroupInfo{Topic: &types.GroupTopic{Topic: "Weekly sync"}},
			kinds: []EventKind{EventGroupUpdate},
			notes: []string{"description"},
			body:  "Weekly sync",
		},
		{
			name:  "other",
			info:  events.GroupInfo{},
			kinds: []EventKind{EventGroupUpdate},
			notes: []string{"update"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus, got := recordBus()
			w := &Whatsmeow{bus: bus}

			info := tc.info
			info.JID = groupID
			info.Sender = &sender
			info.Timestamp = at
			w.emit("", &info)

			require.Equal(t, tc.kinds, kinds(*got))
			for i, e := range *got {
				n, ok := e.Args[0].(*GroupNotification)
				require.True(t, ok)
				assert.Equal(t, tc.notes[i], n.Type)
				assert.Equal(t, "120363025246125486@g.us", n.ChatID)
				assert.Equal(t, "5511888888888@c.us", n.Author)
				assert.Equal(t, at.Unix(), n.Timestamp)
			}
			n := (*got)[0].Args[0].(*GroupNotification)
			assert.Equal(t, tc.body, n.Body)
			if tc.recipients != nil {
				assert.Equal(t, tc.recipients, n.Recipients)
			}
		})
	}
}

func TestEmitJoinedGroup(t *testing.T) {
	bus, got := recordBus()
	w := &Whatsmeow{bus: bus}

	w.emit("", &events.JoinedGroup{
		GroupInfo: types.GroupInfo{
			JID:          groupID,
			GroupName:    types.GroupName{Name: "Team"},
			GroupCreated: time.Unix(1700000005, 0),
		},
	})

	require.Equal(t, []EventKind{EventGroupJoin}, kinds(*got))
	n := (*got)[0].Args[0].(*GroupNotification)
	assert.Equal(t, "add", n.Type)
	assert.Equal(t, "Team", n.Body)
	assert.Equal(t, "120363025246125486@g.us", n.ChatID)
	assert.Empty(t, n.Author)
}
