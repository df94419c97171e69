// Package line speaks the subset of the LINE Messaging API the bot needs:
// webhook payloads, signature checks and reply messages.
package line

import (
	"encoding/json"
	"fmt"
)

const (
	EventMessage  = "message"
	EventFollow   = "follow"
	EventUnfollow = "unfollow"

	MessageText = "text"
)

type Webhook struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type           string   `json:"type"`
	Mode           string   `json:"mode,omitempty"`
	Timestamp      int64    `json:"timestamp"`
	WebhookEventID string   `json:"webhookEventId,omitempty"`
	ReplyToken     string   `json:"replyToken,omitempty"`
	Source         Source   `json:"source"`
	Message        *Message `json:"message,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text returns the text of a text message event, or "" for anything else.
func (e Event) Text() (string, bool) {
	if e.Type != EventMessage || e.Message == nil || e.Message.Type != MessageText {
		return "", false
	}
	return e.Message.Text, true
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (*Webhook, error) {
	var w Webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &w, nil
}
