// Package orchestrator coordinates generation sessions over the message
// store. It enforces the at-most-one-active-generation invariant, owns the
// cancellation token lifecycle, and drives text and image sessions to a
// guaranteed finalization.
package orchestrator

import (
	"errors"
	"sync"

	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/image"
	"github.com/youruser/quill/internal/llm"
	"github.com/youruser/quill/internal/logging"
	"github.com/youruser/quill/internal/persist"
	"github.com/youruser/quill/internal/store"
)

// Kind selects the session type for Start.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

var (
	ErrBusy          = errors.New("a generation is already running")
	ErrNothingActive = errors.New("no generation to stop")

	log = logging.Get()
)

const (
	cancelNotice      = "\n\n[Stopped by user]"
	failureNotice     = "\n\n[Generation failed]"
	imagePlaceholder  = "Generating image..."
	imageStoppedText  = "Image generation stopped."
	imageFailedText   = "Image generation failed"
	missingKeyMessage = "API key not configured. Add one to ~/.config/quill/config.json to start chatting."
)

// Coordinator serializes generations. At most one session runs at a time;
// the token is created by Start and dropped by the session's finalization,
// which runs on every outcome branch.
type Coordinator struct {
	mu     sync.Mutex
	active bool
	token  *Token

	cfg      *config.Config
	store    *store.Store
	persist  persist.Store
	chat     *llm.Client
	images   *image.Generator
	notifier Notifier
}

// New builds a coordinator over the given collaborators. A nil notifier
// disables event delivery.
func New(cfg *config.Config, st *store.Store, ps persist.Store, notifier Notifier) (*Coordinator, error) {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if ps == nil {
		ps = persist.Noop{}
	}

	images, err := image.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		cfg:      cfg,
		store:    st,
		persist:  ps,
		chat:     llm.NewClient(cfg.BaseURL, cfg.APIKey),
		images:   images,
		notifier: notifier,
	}, nil
}

// Start runs one generation session to completion. It returns ErrBusy,
// without touching any message, when a session is already running. The
// session itself runs on the calling goroutine; callers that need to keep
// accepting stop requests dispatch Start on its own goroutine.
func (c *Coordinator) Start(kind Kind, prompt string) error {
	token, ok := c.reserve()
	if !ok {
		log.Info("Rejected %s generation: already generating", kind)
		c.notifier.Warning("A generation is already running")
		return ErrBusy
	}

	log.Info("Starting %s generation", kind)
	switch kind {
	case KindImage:
		c.runImage(token, prompt)
	default:
		c.runText(token, prompt, true)
	}
	return nil
}

// Stop cancels the in-flight generation. From idle it is a no-op warning.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == nil {
		c.notifier.Warning("No generation is running")
		return ErrNothingActive
	}
	log.Info("Cancelling active generation")
	token.Cancel()
	return nil
}

// Regenerate redoes the last assistant turn of the active conversation. It
// removes the trailing assistant message when there is one, then reissues
// text generation for the most recent user text message. Conversations with
// fewer than two messages are left untouched.
func (c *Coordinator) Regenerate() error {
	// Reserve before touching the store: a concurrent session must never
	// see its messages removed by a rejected regenerate.
	token, ok := c.reserve()
	if !ok {
		c.notifier.Warning("A generation is already running")
		return ErrBusy
	}

	conv, ok := c.store.Active()
	if !ok || len(conv.Messages) < 2 {
		c.release()
		return nil
	}

	c.store.RemoveLastAssistant(conv.ID)
	prompt, ok := c.store.LastUserText(conv.ID)
	if !ok {
		c.release()
		return nil
	}

	// The prompt is already the conversation's trailing user message, so
	// the session must not append it a second time.
	log.Info("Regenerating last assistant turn")
	c.runText(token, prompt, false)
	return nil
}

// Busy reports whether a generation is currently running.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Coordinator) reserve() (*Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil, false
	}
	c.active = true
	c.token = newToken()
	return c.token, true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.token = nil
}

// save pushes the conversation's current state to durable storage. Failures
// are logged, never propagated; persistence is not allowed to affect a
// session's outcome.
func (c *Coordinator) save(conversationID string) {
	conv, ok := c.store.Get(conversationID)
	if !ok {
		return
	}
	if err := c.persist.Save(conv); err != nil {
		log.Error("Saving conversation %s failed: %v", conversationID, err)
	}
	if err := c.persist.SaveActiveID(c.store.ActiveID()); err != nil {
		log.Error("Saving active conversation id failed: %v", err)
	}
}

// finalize applies the final patch, notifies the renderer, and reports the
// message's final state.
func (c *Coordinator) finalize(conversationID, messageID string, patch store.Patch) {
	c.store.ReplaceByID(conversationID, messageID, patch)
	if conv, ok := c.store.Get(conversationID); ok {
		for _, msg := range conv.Messages {
			if msg.ID == messageID {
				c.notifier.MessageFinalized(conversationID, msg)
				return
			}
		}
	}
}
