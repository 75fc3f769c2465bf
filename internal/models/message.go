package models

import (
	"sort"
	"time"
)

// Message is a direct message between two users.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	Participants []string  `json:"participants"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
	Read         bool      `json:"read"`
}

func (m Message) EntityID() string { return m.ID }

// Between reports whether the message belongs to the conversation of a and b.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// ConversationKey is stable regardless of who sent the message.
func ConversationKey(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// MessageInput is the compose form payload.
type MessageInput struct {
	ReceiverID string `json:"receiver_id" validate:"notblank"`
	Body       string `json:"body" validate:"notblank,max=2000"`
}
