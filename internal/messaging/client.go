package messaging

import (
	"context"
	"errors"
)

var (
	ErrNotReady      = errors.New("WhatsApp client not ready")
	ErrInvalidChatID = errors.New("invalid chat id")
)

// Client is the external messaging collaborator. Implementations emit their
// lifecycle and message events on the Bus they were built with.
type Client interface {
	// Connect starts a session. It returns once connecting has begun; the
	// outcome arrives as qr, ready, authenticated or auth_failure events.
	Connect(ctx context.Context) error
	// Disconnect tears the live session down without logging out.
	Disconnect(ctx context.Context) error
	// Live reports whether a client instance currently exists.
	Live() bool
	// State mirrors the WhatsApp Web state names (CONNECTED, OPENING, ...).
	State(ctx context.Context) (string, error)
	SendText(ctx context.Context, chatID, body string) (*SentMessage, error)
	Account(ctx context.Context) (*Account, error)
}

// Ack levels as reported by WhatsApp Web.
type Ack int

const (
	AckError   Ack = -1
	AckPending Ack = 0
	AckServer  Ack = 1
	AckDevice  Ack = 2
	AckRead    Ack = 3
	AckPlayed  Ack = 4
)

type Message struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	HasMedia  bool   `json:"hasMedia"`
	FromMe    bool   `json:"fromMe"`
}

// GroupNotification is the raw payload of group join, leave and update events.
type GroupNotification struct {
	ChatID     string   `json:"chatId"`
	Type       string   `json:"type"`
	Author     string   `json:"author,omitempty"`
	Recipients []string `json:"recipientIds,omitempty"`
	Body       string   `json:"body,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

type Account struct {
	Me       string `json:"me"`
	Pushname string `json:"pushname"`
	WID      string `json:"wid"`
	Platform string `json:"platform"`
}

type SentMessage struct {
	ID        string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
}
