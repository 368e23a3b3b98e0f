package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Pollinations builds a templated image URL embedding the prompt and issues
// a validating GET against it. The URL itself is the result; nothing is
// downloaded or stored.
type Pollinations struct {
	baseURL    string
	model      string
	width      int
	height     int
	httpClient *http.Client
}

func NewPollinations(baseURL, model string, width, height int) *Pollinations {
	return &Pollinations{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		width:      width,
		height:     height,
		httpClient: &http.Client{},
	}
}

func (p *Pollinations) Generate(ctx context.Context, prompt string) (string, error) {
	query := url.Values{}
	query.Set("width", strconv.Itoa(p.width))
	query.Set("height", strconv.Itoa(p.height))
	query.Set("nologo", "true")
	if p.model != "" {
		query.Set("model", p.model)
	}
	imageURL := p.baseURL + "/prompt/" + url.PathEscape(prompt) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", err
	}

	log.Debug("HTTP GET %s", imageURL)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024*1024))

	log.Debug("HTTP response status: %d (content-type: %s)", resp.StatusCode, resp.Header.Get("Content-Type"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("image endpoint returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("image endpoint returned %q, not an image", ct)
	}
	return imageURL, nil
}
