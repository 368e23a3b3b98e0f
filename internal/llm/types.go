package llm

import "fmt"

// Request types for the OpenAI-compatible chat completions API.

type ChatRequest struct {
	Model    string       `json:"model"`
	Messages []APIMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

// APIMessage is one turn of the outbound payload.
type APIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response types.

// ChatChunk is a single decoded stream event. Non-streaming responses decode
// into the same shape with Message set instead of Delta.
type ChatChunk struct {
	ID      string        `json:"id"`
	Choices []Choice      `json:"choices"`
	Error   *APIErrorBody `json:"error,omitempty"`
}

type Choice struct {
	Index        int    `json:"index"`
	Delta        *Delta `json:"delta,omitempty"`
	Message      *Delta `json:"message,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// APIErrorBody is the structured error the provider embeds in non-success
// responses and in-band stream events.
type APIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error *APIErrorBody `json:"error"`
}

// APIError is a typed provider failure carrying the provider's message text,
// or the transport status text when no structured body was present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}
