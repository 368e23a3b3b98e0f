// Package persist stores conversations durably between runs.
package persist

import "github.com/youruser/quill/internal/store"

// Store is the durable backing for conversations. Saves are fire-and-forget
// from the orchestrator's point of view; implementations must tolerate being
// called from multiple goroutines.
type Store interface {
	// Save writes one conversation snapshot, replacing any previous state.
	Save(conv store.Conversation) error
	// SaveActiveID records which conversation is currently selected.
	SaveActiveID(id string) error
	// LoadAll returns every stored conversation plus the selected id.
	LoadAll() ([]store.Conversation, string, error)
	// Delete removes a conversation and its messages.
	Delete(id string) error
	Close() error
}

// Noop discards everything. Used when persistence is disabled.
type Noop struct{}

func (Noop) Save(store.Conversation) error                   { return nil }
func (Noop) SaveActiveID(string) error                       { return nil }
func (Noop) LoadAll() ([]store.Conversation, string, error) { return nil, "", nil }
func (Noop) Delete(string) error                             { return nil }
func (Noop) Close() error                                    { return nil }
