// Package hermes publishes import progress events over NATS.
package hermes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

// SubjectConversation carries one ImportEvent per handled conversation.
const SubjectConversation = "chatlog.import.conversation"

// ImportEvent describes how one conversation was imported.
type ImportEvent struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	State          string `json:"state"`
	PageID         string `json:"page_id,omitempty"`
	Appended       int    `json:"appended"`
	Dropped        int    `json:"dropped"`
	Error          string `json:"error,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// NewImportEvent stamps an event with the current UTC time.
func NewImportEvent(runID, conversationID, title, state string) ImportEvent {
	return ImportEvent{
		RunID:          runID,
		ConversationID: conversationID,
		Title:          title,
		State:          state,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// DecodeImportEvent parses an event published on SubjectConversation.
func DecodeImportEvent(data []byte) (ImportEvent, error) {
	var ev ImportEvent
	if err := jsonx.Unmarshal(data, &ev); err != nil {
		return ImportEvent{}, fmt.Errorf("decode import event: %w", err)
	}
	if ev.ConversationID == "" {
		return ImportEvent{}, fmt.Errorf("decode import event: missing conversation_id")
	}
	return ev, nil
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("chatgpt-notion"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := jsonx.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Close drains pending publishes before closing the connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
