package orchestrator

import "github.com/youruser/quill/internal/store"

// runImage drives one image generation through the provider chain. The
// placeholder assistant message becomes either a kind=image message or a
// kind=text error message at finalization.
func (c *Coordinator) runImage(token *Token, prompt string) {
	conv := c.store.EnsureActive(prompt)
	defer func() {
		c.release()
		c.save(conv.ID)
	}()

	if err := c.store.Append(conv.ID, store.NewTextMessage(store.RoleUser, prompt)); err != nil {
		log.Error("Appending user message failed: %v", err)
		return
	}
	placeholder := store.NewTextMessage(store.RoleAssistant, imagePlaceholder)
	if err := c.store.Append(conv.ID, placeholder); err != nil {
		log.Error("Appending placeholder failed: %v", err)
		return
	}

	url, err := c.images.Generate(token.Context(), prompt)

	switch {
	case err == nil:
		log.Info("Image generation complete: %s", url)
		kind := store.KindImage
		errFlag := false
		c.finalize(conv.ID, placeholder.ID, store.Patch{
			Content: &url,
			Kind:    &kind,
			Prompt:  &prompt,
			Error:   &errFlag,
		})
	case token.Cancelled():
		log.Info("Image generation cancelled")
		content := imageStoppedText
		errFlag := false
		c.finalize(conv.ID, placeholder.ID, store.Patch{Content: &content, Error: &errFlag})
	default:
		log.Error("Image generation failed: %v", err)
		content := imageFailedText
		errFlag := true
		detail := err.Error()
		c.finalize(conv.ID, placeholder.ID, store.Patch{
			Content:     &content,
			Error:       &errFlag,
			ErrorDetail: &detail,
		})
	}
}
