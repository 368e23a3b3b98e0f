package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/youruser/quill/internal/logging"
)

var log = logging.Get()

// Client handles communication with the chat completions API.
//
// The HTTP client carries no timeout: streamed responses are open-ended
// and cancellation comes from the request context. A hang in the transport
// is bounded only by the transport's own defaults.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new chat client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Stream is one in-flight streamed completion. Callers must drain it with
// Next until io.EOF (or an error) and then Close it.
type Stream struct {
	body io.ReadCloser
	dec  *Decoder
}

// Next returns the next content delta; io.EOF ends the sequence.
func (s *Stream) Next() (string, error) {
	return s.dec.Next()
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

// ChatStream issues a streaming chat completion request. The system prompt
// is prepended to the history. The context carries cancellation: aborting it
// closes the response body, and the stream surfaces the context error.
func (c *Client) ChatStream(ctx context.Context, model, systemPrompt string, history []APIMessage) (*Stream, error) {
	messages := make([]APIMessage, 0, len(history)+1)
	messages = append(messages, APIMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)

	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP POST %s/chat/completions (model: %s, messages: %d, ~%d tokens)",
		c.baseURL, model, len(messages), EstimateMessagesSimple(messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, err
	}

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return &Stream{body: resp.Body, dec: NewDecoder(resp.Body)}, nil
}

// readAPIError builds a typed failure from a non-success response, preferring
// the provider's structured error message over the transport status text.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	log.Error("API error %d: %s", resp.StatusCode, string(body))

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return &APIError{Status: resp.StatusCode, Message: envelope.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}
