// Package store holds the in-memory conversation list. It performs no I/O;
// durable persistence is the persist package's concern. Mutations are
// synchronous and immediately visible to readers.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTitleEmpty           = errors.New("conversation title cannot be empty")
)

// maxTitleLen bounds titles derived from prompts, in runes.
const maxTitleLen = 30

// Store is the in-memory conversation registry. At most one conversation is
// active at a time; generation sessions mutate only the active one.
type Store struct {
	mu            sync.RWMutex
	conversations []*Conversation
	activeID      string
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// TitleFromPrompt derives a conversation title from the triggering prompt,
// truncating to a fixed maximum with an ellipsis marker.
func TitleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if title == "" {
		title = "New conversation"
	}
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen]) + "..."
	}
	return title
}

// NewConversation creates a conversation, sets it active, and returns a
// snapshot of it.
func (s *Store) NewConversation(title string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:          uuid.NewString(),
		Title:       title,
		Messages:    []Message{},
		LastUpdated: time.Now().UTC(),
	}
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	return conv.clone()
}

// EnsureActive returns the active conversation, creating a new one titled
// from the prompt when there is no active conversation or the active one
// has zero messages. An empty active conversation is left untouched; its
// title may have been chosen by the user.
func (s *Store) EnsureActive(prompt string) Conversation {
	s.mu.Lock()
	active := s.find(s.activeID)
	if active != nil && len(active.Messages) > 0 {
		defer s.mu.Unlock()
		return active.clone()
	}
	s.mu.Unlock()

	return s.NewConversation(TitleFromPrompt(prompt))
}

// Active returns a snapshot of the active conversation, if any.
func (s *Store) Active() (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.find(s.activeID)
	if conv == nil {
		return Conversation{}, false
	}
	return conv.clone(), true
}

// Get returns a snapshot of a conversation by ID.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.find(id)
	if conv == nil {
		return Conversation{}, false
	}
	return conv.clone(), true
}

// Append adds a message to a conversation.
func (s *Store) Append(conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastUpdated = time.Now().UTC()
	return nil
}

// ReplaceByID patches a message in place. Returns false when either the
// conversation or the message is not found.
func (s *Store) ReplaceByID(conversationID, messageID string, patch Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(conversationID)
	if conv == nil {
		return false
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			patch.apply(&conv.Messages[i])
			conv.LastUpdated = time.Now().UTC()
			return true
		}
	}
	return false
}

// RemoveLastAssistant removes the final message of a conversation if it is an
// assistant message. Returns true when a message was removed.
func (s *Store) RemoveLastAssistant(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(conversationID)
	if conv == nil || len(conv.Messages) == 0 {
		return false
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Role != RoleAssistant {
		return false
	}
	conv.Messages = conv.Messages[:len(conv.Messages)-1]
	conv.LastUpdated = time.Now().UTC()
	return true
}

// LastUserText returns the content of the most recent user text message.
func (s *Store) LastUserText(conversationID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.find(conversationID)
	if conv == nil {
		return "", false
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role == RoleUser && msg.Kind == KindText {
			return msg.Content, true
		}
	}
	return "", false
}

// List returns summaries of all conversations, most recently updated first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, Summary{
			ID:          conv.ID,
			Title:       conv.Title,
			LastUpdated: conv.LastUpdated,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out
}

// Select makes a conversation active.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(id) == nil {
		return ErrConversationNotFound
	}
	s.activeID = id
	return nil
}

// Delete removes a conversation. Deleting the active conversation clears the
// active selection.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, conv := range s.conversations {
		if conv.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			if s.activeID == id {
				s.activeID = ""
			}
			return nil
		}
	}
	return ErrConversationNotFound
}

// Rename updates a conversation's title.
func (s *Store) Rename(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(id)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.Title = title
	conv.LastUpdated = time.Now().UTC()
	return nil
}

// Restore replaces the store contents, typically from durable storage at
// startup. An unknown activeID leaves no conversation selected.
func (s *Store) Restore(conversations []Conversation, activeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]*Conversation, 0, len(conversations))
	s.activeID = ""
	for i := range conversations {
		conv := conversations[i].clone()
		s.conversations = append(s.conversations, &conv)
		if conv.ID == activeID {
			s.activeID = activeID
		}
	}
}

// ActiveID returns the ID of the active conversation, or "".
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// find must be called with the lock held.
func (s *Store) find(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}
