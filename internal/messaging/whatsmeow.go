package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// DeviceSource hands out the device the session is stored under.
type DeviceSource interface {
	GetFirstDevice(ctx context.Context) (*store.Device, error)
}

var ErrQRTimeout = errors.New("QR code was not scanned in time")

// Whatsmeow implements Client on top of a whatsmeow multi-device session.
type Whatsmeow struct {
	devices DeviceSource
	bus     *Bus
	log     zerolog.Logger

	mu       sync.Mutex
	cli      *whatsmeow.Client
	cancelQR context.CancelFunc
}

func NewWhatsmeow(devices DeviceSource, bus *Bus, log zerolog.Logger) *Whatsmeow {
	return &Whatsmeow{
		devices: devices,
		bus:     bus,
		log:     log.With().Str("component", "whatsmeow").Logger(),
	}
}

func (w *Whatsmeow) Connect(ctx context.Context) error {
	device, err := w.devices.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}

	cli := whatsmeow.NewClient(device, NewLogger(w.log, "client"))
	// Reconnection is owned by the lifecycle manager.
	cli.EnableAutoReconnect = false
	cli.AddEventHandler(func(evt interface{}) { w.handle(cli, evt) })

	var qrCh <-chan whatsmeow.QRChannelItem
	qrCtx, cancelQR := context.WithCancel(context.Background())
	if cli.Store.ID == nil {
		qrCh, err = cli.GetQRChannel(qrCtx)
		if err != nil {
			cancelQR()
			return fmt.Errorf("open QR channel: %w", err)
		}
	}

	w.mu.Lock()
	w.cli = cli
	w.cancelQR = cancelQR
	w.mu.Unlock()

	if qrCh != nil {
		go w.pumpQR(cli, qrCh)
	}

	if err := cli.Connect(); err != nil {
		w.mu.Lock()
		if w.cli == cli {
			w.cli = nil
			w.cancelQR = nil
		}
		w.mu.Unlock()
		cancelQR()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (w *Whatsmeow) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	cli, cancelQR := w.cli, w.cancelQR
	w.cli, w.cancelQR = nil, nil
	w.mu.Unlock()

	if cancelQR != nil {
		cancelQR()
	}
	if cli != nil {
		cli.Disconnect()
	}
	return nil
}

func (w *Whatsmeow) Live() bool {
	return w.current() != nil
}

func (w *Whatsmeow) State(ctx context.Context) (string, error) {
	cli := w.current()
	if cli == nil {
		return "", ErrNotReady
	}
	switch {
	case cli.IsConnected() && cli.IsLoggedIn():
		return "CONNECTED", nil
	case cli.IsConnected():
		return "OPENING", nil
	default:
		return "DISCONNECTED", nil
	}
}

func (w *Whatsmeow) SendText(ctx context.Context, chatID, body string) (*SentMessage, error) {
	cli := w.current()
	if cli == nil || !cli.IsLoggedIn() || cli.Store.ID == nil {
		return nil, ErrNotReady
	}

	to, err := ParseChatID(chatID)
	if err != nil {
		return nil, err
	}

	resp, err := cli.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	return &SentMessage{
		ID:        resp.ID,
		Timestamp: resp.Timestamp.Unix(),
		From:      WebID(cli.Store.ID.ToNonAD()),
		To:        WebID(to),
	}, nil
}

func (w *Whatsmeow) Account(ctx context.Context) (*Account, error) {
	cli := w.current()
	if cli == nil || cli.Store.ID == nil {
		return nil, ErrNotReady
	}
	me := cli.Store.ID.ToNonAD()
	return &Account{
		Me:       me.User,
		Pushname: cli.Store.PushName,
		WID:      WebID(me),
		Platform: cli.Store.Platform,
	}, nil
}

func (w *Whatsmeow) current() *whatsmeow.Client {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cli
}

func (w *Whatsmeow) pumpQR(cli *whatsmeow.Client, ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		if w.current() != cli {
			continue
		}
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			w.bus.Emit(EventQR, item.Code)
		case whatsmeow.QRChannelSuccess.Event:
		case whatsmeow.QRChannelTimeout.Event:
			w.bus.Emit(EventAuthFailure, ErrQRTimeout)
		default:
			err := item.Error
			if err == nil {
				err = fmt.Errorf("pairing failed: %s", item.Event)
			}
			w.bus.Emit(EventAuthFailure, err)
		}
	}
}

func (w *Whatsmeow) handle(cli *whatsmeow.Client, evt interface{}) {
	// Events from a client that has since been replaced or torn down are stale.
	if w.current() != cli {
		return
	}

	var me string
	if cli.Store.ID != nil {
		me = WebID(cli.Store.ID.ToNonAD())
	}
	w.emit(me, evt)
}

// emit maps one whatsmeow event onto bus events. me is the account's own
// WhatsApp Web id, empty before pairing.
func (w *Whatsmeow) emit(me string, evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		w.bus.Emit(EventAuthenticated, WebID(e.ID.ToNonAD()))
	case *events.Connected:
		w.bus.Emit(EventReady)
	case *events.LoggedOut:
		w.bus.Emit(EventDisconnected, "LOGOUT")
	case *events.StreamReplaced:
		w.bus.Emit(EventDisconnected, "CONFLICT")
	case *events.Disconnected:
		w.bus.Emit(EventDisconnected, "NAVIGATION")
	case *events.Message:
		msg := convertMessage(me, e)
		if !msg.FromMe {
			w.bus.Emit(EventMessage, msg)
		}
		w.bus.Emit(EventMessageCreate, msg)
	case *events.Receipt:
		ack, ok := receiptAck(e.Type)
		if !ok {
			return
		}
		for _, id := range e.MessageIDs {
			w.bus.Emit(EventMessageAck, &Message{
				ID:        id,
				From:      WebID(e.Chat),
				Timestamp: e.Timestamp.Unix(),
				FromMe:    true,
			}, ack)
		}
	case *events.JoinedGroup:
		n := &GroupNotification{
			ChatID:    WebID(e.JID),
			Type:      "add",
			Body:      e.Name,
			Timestamp: e.GroupCreated.Unix(),
		}
		if e.Sender != nil {
			n.Author = WebID(*e.Sender)
		}
		w.bus.Emit(EventGroupJoin, n)
	case *events.GroupInfo:
		w.emitGroupInfo(e)
	}
}

func (w *Whatsmeow) emitGroupInfo(e *events.GroupInfo) {
	base := GroupNotification{ChatID: WebID(e.JID), Timestamp: e.Timestamp.Unix()}
	if e.Sender != nil {
		base.Author = WebID(*e.Sender)
	}

	if len(e.Join) > 0 {
		n := base
		n.Type = "add"
		n.Recipients = webIDs(e.Join)
		w.bus.Emit(EventGroupJoin, &n)
	}
	if len(e.Leave) > 0 {
		n := base
		n.Type = "remove"
		n.Recipients = webIDs(e.Leave)
		w.bus.Emit(EventGroupLeave, &n)
	}
	if len(e.Join) == 0 && len(e.Leave) == 0 {
		n := base
		switch {
		case e.Name != nil:
			n.Type = "subject"
			n.Body = e.Name.Name
		case e.Topic != nil:
			n.Type = "description"
			n.Body = e.Topic.Topic
		default:
			n.Type = "update"
		}
		w.bus.Emit(EventGroupUpdate, &n)
	}
}

func convertMessage(me string, e *events.Message) *Message {
	msg := &Message{
		ID:        e.Info.ID,
		Body:      messageBody(e.Message),
		Timestamp: e.Info.Timestamp.Unix(),
		Type:      messageType(e.Info),
		HasMedia:  e.Info.Type == "media",
		FromMe:    e.Info.IsFromMe,
	}

	chat := WebID(e.Info.Chat)
	if msg.FromMe {
		msg.From, msg.To = me, chat
	} else {
		msg.From, msg.To = chat, me
	}
	return msg
}

func messageBody(m *waE2E.Message) string {
	switch {
	case m.GetConversation() != "":
		return m.GetConversation()
	case m.GetExtendedTextMessage() != nil:
		return m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetCaption()
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetCaption()
	case m.GetDocumentMessage() != nil:
		return m.GetDocumentMessage().GetCaption()
	}
	return ""
}

func messageType(info types.MessageInfo) string {
	if info.Type != "media" {
		return "chat"
	}
	if info.MediaType == "" {
		return "unknown"
	}
	return info.MediaType
}

func receiptAck(t types.ReceiptType) (Ack, bool) {
	switch t {
	case types.ReceiptTypeDelivered:
		return AckDevice, true
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return AckRead, true
	case types.ReceiptTypePlayed:
		return AckPlayed, true
	}
	return 0, false
}

// WebID renders a JID the way WhatsApp Web does, with user chats on c.us.
func WebID(jid types.JID) string {
	if jid.Server == types.DefaultUserServer {
		return jid.User + "@c.us"
	}
	return jid.String()
}

func webIDs(jids []types.JID) []string {
	out := make([]string, len(jids))
	for i, j := range jids {
		out[i] = WebID(j)
	}
	return out
}

// ParseChatID accepts a bare phone number, a WhatsApp Web id (number@c.us)
// or a full JID such as a group id.
func ParseChatID(chatID string) (types.JID, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return types.JID{}, fmt.Errorf("%w %q", ErrInvalidChatID, chatID)
	}
	if user, ok := strings.CutSuffix(chatID, "@c.us"); ok {
		return types.NewJID(user, types.DefaultUserServer), nil
	}
	if !strings.Contains(chatID, "@") {
		return types.NewJID(strings.TrimPrefix(chatID, "+"), types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return types.JID{}, fmt.Errorf("%w %q: %v", ErrInvalidChatID, chatID, err)
	}
	return jid, nil
}
