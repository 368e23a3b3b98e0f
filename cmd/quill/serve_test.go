package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/orchestrator"
	"github.com/youruser/quill/internal/persist"
	"github.com/youruser/quill/internal/store"
)

func newTestServer(t *testing.T) (*server, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		APIKey:        "key",
		BaseURL:       "http://unused.invalid",
		Model:         "test-model",
		SystemPrompt:  "sys",
		ImageProvider: config.ImageProviderPollinations,
		ImageBaseURL:  "http://unused.invalid",
		ImageWidth:    512,
		ImageHeight:   512,
	}
	out := &bytes.Buffer{}
	s := &server{store: store.New(), persist: persist.Noop{}, out: out}
	coord, err := orchestrator.New(cfg, s.store, s.persist, s)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	s.coord = coord
	return s, out
}

// lastResponse parses the most recent output line.
func lastResponse(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var resp map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &resp); err != nil {
		t.Fatalf("parsing response %q: %v", lines[len(lines)-1], err)
	}
	return resp
}

func TestHandleRequest(t *testing.T) {
	t.Run("ping echoes request id", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{"action":"ping","request_id":"42"}`)
		resp := lastResponse(t, out)
		if resp["type"] != "ok" || resp["request_id"] != "42" {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{nope`)
		if resp := lastResponse(t, out); resp["type"] != "error" {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{"action":"fly"}`)
		resp := lastResponse(t, out)
		if resp["type"] != "error" || !strings.Contains(resp["message"].(string), "fly") {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("send requires content", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{"action":"send","content":"  "}`)
		if resp := lastResponse(t, out); resp["type"] != "error" {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("stop while idle", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{"action":"stop"}`)
		resp := lastResponse(t, out)
		if resp["type"] != "error" || resp["message"] != "No generation is running" {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("shutdown stops the loop", func(t *testing.T) {
		s, _ := newTestServer(t)
		if !s.handleRequest(`{"action":"shutdown"}`) {
			t.Error("shutdown did not request loop exit")
		}
		if s.handleRequest(`{"action":"ping"}`) {
			t.Error("ping requested loop exit")
		}
	})

	t.Run("estimate_tokens", func(t *testing.T) {
		s, out := newTestServer(t)
		s.handleRequest(`{"action":"estimate_tokens","content":"hello world, how are you today?"}`)
		resp := lastResponse(t, out)
		if resp["type"] != "tokens" {
			t.Fatalf("response = %v", resp)
		}
		if count, ok := resp["count"].(float64); !ok || count <= 0 {
			t.Errorf("count = %v", resp["count"])
		}
	})
}

func TestConversationActions(t *testing.T) {
	s, out := newTestServer(t)

	s.handleRequest(`{"action":"conversation_new","title":"First"}`)
	resp := lastResponse(t, out)
	if resp["type"] != "conversation" {
		t.Fatalf("conversation_new response = %v", resp)
	}
	conv := resp["conversation"].(map[string]any)
	id := conv["id"].(string)
	if conv["title"] != "First" {
		t.Errorf("title = %v", conv["title"])
	}

	s.handleRequest(`{"action":"conversation_rename","id":"` + id + `","title":"Renamed"}`)
	if resp := lastResponse(t, out); resp["type"] != "ok" {
		t.Fatalf("rename response = %v", resp)
	}

	s.handleRequest(`{"action":"conversation_get"}`)
	resp = lastResponse(t, out)
	if got := resp["conversation"].(map[string]any)["title"]; got != "Renamed" {
		t.Errorf("title after rename = %v", got)
	}

	s.handleRequest(`{"action":"conversation_list"}`)
	resp = lastResponse(t, out)
	if list := resp["conversations"].([]any); len(list) != 1 {
		t.Errorf("list = %v", list)
	}

	s.handleRequest(`{"action":"conversation_delete","id":"` + id + `"}`)
	if resp := lastResponse(t, out); resp["type"] != "ok" {
		t.Fatalf("delete response = %v", resp)
	}

	s.handleRequest(`{"action":"conversation_get"}`)
	resp = lastResponse(t, out)
	if resp["type"] != "error" || resp["message"] != "Conversation not found" {
		t.Errorf("get after delete = %v", resp)
	}

	s.handleRequest(`{"action":"conversation_select","id":"missing"}`)
	if resp := lastResponse(t, out); resp["message"] != "Conversation not found" {
		t.Errorf("select missing = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"request_id":"abc"}`, "abc"},
		{`{"request_id":7}`, "7"},
		{`{}`, ""},
	}
	for _, tc := range cases {
		var req map[string]any
		if err := json.Unmarshal([]byte(tc.raw), &req); err != nil {
			t.Fatalf("unmarshal %q: %v", tc.raw, err)
		}
		if got := requestID(req); got != tc.want {
			t.Errorf("requestID(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", store.ErrConversationNotFound)
	if got := userMessage(wrapped); got != "Conversation not found" {
		t.Errorf("userMessage = %q", got)
	}
}
