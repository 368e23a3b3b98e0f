package store

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind identifies the content variant of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Message is a single entry in a conversation. The kind tag selects the
// variant: for text messages Content is the body; for image messages
// Content is the image URL and Prompt holds the prompt that produced it.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Kind        Kind      `json:"kind"`
	Content     string    `json:"content"`
	Prompt      string    `json:"prompt,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Error       bool      `json:"error,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// NewTextMessage creates a text message with a fresh ID.
func NewTextMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Kind:      KindText,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewImageMessage creates an assistant image message with a fresh ID.
// The content is the image URL; prompt is the user prompt that produced it.
func NewImageMessage(url, prompt string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Kind:      KindImage,
		Content:   url,
		Prompt:    prompt,
		Timestamp: time.Now().UTC(),
	}
}

// Patch describes an in-place update to a message. Nil fields are left
// unchanged.
type Patch struct {
	Content     *string
	Kind        *Kind
	Prompt      *string
	Error       *bool
	ErrorDetail *string
}

func (p Patch) apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Kind != nil {
		m.Kind = *p.Kind
	}
	if p.Prompt != nil {
		m.Prompt = *p.Prompt
	}
	if p.Error != nil {
		m.Error = *p.Error
	}
	if p.ErrorDetail != nil {
		m.ErrorDetail = *p.ErrorDetail
	}
}

// Conversation is an ordered list of messages with a short title.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"last_updated"`
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// Summary is a lightweight representation for listing conversations.
type Summary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"last_updated"`
}
