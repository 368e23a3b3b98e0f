package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAI issues a single structured image request against an OpenAI-style
// /images/generations endpoint. Both a credential and a model must be
// configured; there is no fallback for this provider.
type OpenAI struct {
	apiURL     string
	apiKey     string
	model      string
	width      int
	height     int
	httpClient *http.Client
}

func NewOpenAI(apiURL, apiKey, model string, width, height int) *OpenAI {
	return &OpenAI{
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		width:      width,
		height:     height,
		httpClient: &http.Client{},
	}
}

type imageRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%w: missing API key", ErrNotConfigured)
	}
	if o.model == "" {
		return "", fmt.Errorf("%w: missing image model", ErrNotConfigured)
	}

	reqBody := imageRequest{
		Prompt:  prompt,
		Model:   o.model,
		Size:    fmt.Sprintf("%dx%d", o.width, o.height),
		Quality: "standard",
		N:       1,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	log.Debug("HTTP POST %s (model: %s, size: %s)", o.apiURL, reqBody.Model, reqBody.Size)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	log.Debug("HTTP response status: %d", resp.StatusCode)

	var parsed imageResponse
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("image API error: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("image API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing image API response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", ErrNoImage
	}
	return parsed.Data[0].URL, nil
}
