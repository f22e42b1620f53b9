package host

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Toaster is where user notices land. The web bridge broadcasts them to
// connected dashboards.
type Toaster interface {
	Toast(message string, duration time.Duration)
}

// chatMessage is the wire format for chat submissions.
type chatMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// ChatClient implements Host over a websocket connection to the chat
// backend. The connection is dialed lazily on the first send and redialed
// after a write failure.
type ChatClient struct {
	url      string
	clientID string
	input    Input
	toaster  Toaster
	logger   *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	expectMu  sync.Mutex
	expecting bool
}

// NewChatClient creates a chat client. url may be empty, in which case
// SendMessage fails and the caller decides what to surface.
func NewChatClient(url, clientID string, input Input, toaster Toaster, logger *slog.Logger) *ChatClient {
	return &ChatClient{
		url:      url,
		clientID: clientID,
		input:    input,
		toaster:  toaster,
		logger:   logger.With("component", "host.chat"),
	}
}

// SetToaster attaches the notice sink. The web server is constructed
// after the chat client, so this cannot happen in NewChatClient.
func (c *ChatClient) SetToaster(t Toaster) {
	c.mu.Lock()
	c.toaster = t
	c.mu.Unlock()
}

// SendMessage submits the current input-field content through the chat
// pipeline and clears the field on success.
func (c *ChatClient) SendMessage() error {
	text := c.input.Value()
	if c.url == "" {
		return fmt.Errorf("host: no chat endpoint configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := chatMessage{Type: "message", Text: text, ClientID: c.clientID}
	if err := c.writeLocked(msg); err != nil {
		// One redial: the backend may have dropped an idle connection.
		c.closeLocked()
		if err = c.writeLocked(msg); err != nil {
			c.logger.Warn("chat send failed", "error", err)
			return err
		}
	}
	c.input.SetValue("", false)
	return nil
}

func (c *ChatClient) writeLocked(msg chatMessage) error {
	if c.conn == nil {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.Dial(c.url, http.Header{})
		if err != nil {
			return fmt.Errorf("host: dial chat: %w", err)
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		c.conn = conn
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

func (c *ChatClient) closeLocked() {
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the chat connection down.
func (c *ChatClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// ShowToast forwards a notice to the attached toaster.
func (c *ChatClient) ShowToast(message string, duration time.Duration) {
	c.mu.Lock()
	t := c.toaster
	c.mu.Unlock()
	if t != nil {
		t.Toast(message, duration)
	}
}

// ExpectingResponse reports whether an assistant reply is pending.
func (c *ChatClient) ExpectingResponse() bool {
	c.expectMu.Lock()
	defer c.expectMu.Unlock()
	return c.expecting
}

// SetExpectingResponse records whether an assistant reply is pending.
func (c *ChatClient) SetExpectingResponse(v bool) {
	c.expectMu.Lock()
	defer c.expectMu.Unlock()
	c.expecting = v
}

var _ Host = (*ChatClient)(nil)
