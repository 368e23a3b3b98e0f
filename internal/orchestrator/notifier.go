package orchestrator

import "github.com/youruser/quill/internal/store"

// Notifier receives rendering-relevant events. The store is the source of
// truth; these calls only tell the rendering collaborator that something
// changed and a redraw is worthwhile.
type Notifier interface {
	// Delta fires after each streamed fragment has been applied to the
	// target message. Content is the fragment, not the accumulated text.
	Delta(conversationID, messageID, content string)
	// MessageFinalized fires once per generation with the message's final
	// state, on every outcome branch.
	MessageFinalized(conversationID string, msg store.Message)
	// Warning surfaces a user-visible notice for rejected operations.
	Warning(text string)
}

type noopNotifier struct{}

func (noopNotifier) Delta(string, string, string)           {}
func (noopNotifier) MessageFinalized(string, store.Message) {}
func (noopNotifier) Warning(string)                         {}
