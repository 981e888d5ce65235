// Package messagingtest provides an in-memory messaging.Client for tests.
package messagingtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

type SentText struct {
	ChatID string
	Body   string
}

// Client records calls and emits whatever its connect script says on the bus.
type Client struct {
	bus *messaging.Bus

	mu          sync.Mutex
	live        bool
	connects    int
	disconnects int
	connectErr  error
	script      func(bus *messaging.Bus)
	state       string
	account     *messaging.Account
	sent        []SentText
}

func New(bus *messaging.Bus) *Client {
	return &Client{
		bus:   bus,
		state: "CONNECTED",
		account: &messaging.Account{
			Me:       "5511999999999",
			Pushname: "Test",
			WID:      "5511999999999@c.us",
			Platform: "android",
		},
	}
}

// OnConnect sets the events emitted, from a separate goroutine, after each
// successful Connect.
func (c *Client) OnConnect(script func(bus *messaging.Bus)) {
	c.mu.Lock()
	c.script = script
	c.mu.Unlock()
}

func (c *Client) FailConnect(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.mu.Unlock()
}

func (c *Client) SetState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *Client) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

func (c *Client) Sent() []SentText {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentText, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connects++
	if c.connectErr != nil {
		err := c.connectErr
		c.mu.Unlock()
		return err
	}
	c.live = true
	script := c.script
	c.mu.Unlock()

	if script != nil {
		go script(c.bus)
	}
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.disconnects++
	c.live = false
	c.mu.Unlock()
	return nil
}

func (c *Client) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Client) State(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return "", messaging.ErrNotReady
	}
	return c.state, nil
}

func (c *Client) SendText(ctx context.Context, chatID, body string) (*messaging.SentMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return nil, messaging.ErrNotReady
	}
	if _, err := messaging.ParseChatID(chatID); err != nil {
		return nil, err
	}
	c.sent = append(c.sent, SentText{ChatID: chatID, Body: body})
	return &messaging.SentMessage{
		ID:        fmt.Sprintf("fake-%d", len(c.sent)),
		Timestamp: time.Now().Unix(),
		From:      c.account.WID,
		To:        chatID,
	}, nil
}

func (c *Client) Account(ctx context.Context) (*messaging.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return nil, messaging.ErrNotReady
	}
	acc := *c.account
	return &acc, nil
}

var _ messaging.Client = (*Client)(nil)
