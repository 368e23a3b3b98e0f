package orchestrator

import (
	"io"
	"strings"

	"github.com/youruser/quill/internal/llm"
	"github.com/youruser/quill/internal/store"
)

// runText drives one streamed chat completion. appendPrompt is false when
// regenerating, where the prompt is already the conversation's trailing
// user message.
func (c *Coordinator) runText(token *Token, prompt string, appendPrompt bool) {
	conv := c.store.EnsureActive(prompt)
	defer func() {
		c.release()
		c.save(conv.ID)
	}()

	if appendPrompt {
		if err := c.store.Append(conv.ID, store.NewTextMessage(store.RoleUser, prompt)); err != nil {
			log.Error("Appending user message failed: %v", err)
			return
		}
	}

	if c.cfg.APIKey == "" {
		msg := store.NewTextMessage(store.RoleAssistant, missingKeyMessage)
		msg.Error = true
		msg.ErrorDetail = "missing API key"
		c.store.Append(conv.ID, msg)
		c.notifier.MessageFinalized(conv.ID, msg)
		return
	}

	history := c.buildHistory(conv.ID)

	target := store.NewTextMessage(store.RoleAssistant, "")
	if err := c.store.Append(conv.ID, target); err != nil {
		log.Error("Appending placeholder failed: %v", err)
		return
	}

	stream, err := c.chat.ChatStream(token.Context(), c.cfg.Model, c.cfg.SystemPrompt, history)
	if err != nil {
		if token.Cancelled() {
			c.finalizeTextCancel(conv.ID, target.ID, "")
		} else {
			c.finalizeTextError(conv.ID, target.ID, "", err)
		}
		return
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		delta, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if token.Cancelled() {
				c.finalizeTextCancel(conv.ID, target.ID, acc.String())
			} else {
				c.finalizeTextError(conv.ID, target.ID, acc.String(), err)
			}
			return
		}

		acc.WriteString(delta)
		content := acc.String()
		c.store.ReplaceByID(conv.ID, target.ID, store.Patch{Content: &content})
		c.notifier.Delta(conv.ID, target.ID, delta)
	}

	if token.Cancelled() {
		c.finalizeTextCancel(conv.ID, target.ID, acc.String())
		return
	}

	log.Info("Text generation complete (%d chars)", acc.Len())
	content := acc.String()
	c.finalize(conv.ID, target.ID, store.Patch{Content: &content})
}

// buildHistory maps the conversation's text messages, in order, to the
// outbound role+content pairs. Image messages carry a URL, not chat
// content, so they are left out.
func (c *Coordinator) buildHistory(conversationID string) []llm.APIMessage {
	conv, ok := c.store.Get(conversationID)
	if !ok {
		return nil
	}
	out := make([]llm.APIMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg.Kind != store.KindText {
			continue
		}
		out = append(out, llm.APIMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// finalizeTextCancel preserves the partial content and appends the
// cancellation notice. Cancellation is not an error.
func (c *Coordinator) finalizeTextCancel(conversationID, messageID, partial string) {
	log.Info("Text generation cancelled (%d chars kept)", len(partial))
	content := partial + cancelNotice
	if partial == "" {
		content = strings.TrimSpace(cancelNotice)
	}
	errFlag := false
	c.finalize(conversationID, messageID, store.Patch{Content: &content, Error: &errFlag})
}

func (c *Coordinator) finalizeTextError(conversationID, messageID, partial string, cause error) {
	log.Error("Text generation failed: %v", cause)
	content := partial + failureNotice
	if partial == "" {
		content = strings.TrimSpace(failureNotice)
	}
	errFlag := true
	detail := cause.Error()
	c.finalize(conversationID, messageID, store.Patch{
		Content:     &content,
		Error:       &errFlag,
		ErrorDetail: &detail,
	})
}
