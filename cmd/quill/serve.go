package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/image"
	"github.com/youruser/quill/internal/llm"
	"github.com/youruser/quill/internal/orchestrator"
	"github.com/youruser/quill/internal/persist"
	"github.com/youruser/quill/internal/store"
)

// server wires the request loop to the orchestrator. It is also the
// orchestrator's Notifier: store mutations surface to the frontend as
// chunk/message/warning events on stdout.
type server struct {
	store   *store.Store
	coord   *orchestrator.Coordinator
	persist persist.Store

	respondMu sync.Mutex
	out       io.Writer
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", userMessage(err))
		return err
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = strings.TrimSpace(defaultSystemPrompt)
	}

	var ps persist.Store = persist.Noop{}
	if !noPersist {
		path, err := defaultDBPath()
		if err == nil {
			var sqlStore *persist.SQLiteStore
			if sqlStore, err = persist.NewSQLiteStore(path); err == nil {
				ps = sqlStore
			}
		}
		if err != nil {
			// Run without durability rather than refusing to start.
			log.Error("Opening conversation database failed: %v", err)
			fmt.Fprintf(os.Stderr, "quill: conversation storage unavailable: %v\n", err)
		}
	}
	defer ps.Close()

	st := store.New()
	conversations, activeID, err := ps.LoadAll()
	if err != nil {
		log.Error("Restoring conversations failed: %v", err)
	} else {
		st.Restore(conversations, activeID)
		log.Info("Restored %d conversations", len(conversations))
	}

	s := &server{store: st, persist: ps, out: os.Stdout}
	coord, err := orchestrator.New(cfg, st, ps, s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return err
	}
	s.coord = coord

	log.Info("quill %s serving on stdin", versionString())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s.handleRequest(line) {
			break
		}
	}
	return scanner.Err()
}

// handleRequest processes one JSON request line. It reports true when the
// loop should shut down.
func (s *server) handleRequest(line string) bool {
	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error("Invalid JSON request: %s", line)
		s.respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return false
	}

	action, _ := req["action"].(string)
	log.Request(action, line)
	reqID := requestID(req)

	if s.coord.Busy() && generationAction(action) {
		s.respond(reqID, map[string]any{"type": "error", "message": "A generation is already running"})
		return false
	}

	switch action {
	case "ping":
		s.respond(reqID, map[string]any{"type": "ok"})

	case "version":
		s.respond(reqID, map[string]any{"type": "version", "version": versionString()})

	case "send":
		content, _ := req["content"].(string)
		if strings.TrimSpace(content) == "" {
			s.respond(reqID, map[string]any{"type": "error", "message": "Missing required field: content"})
			return false
		}
		s.respond(reqID, map[string]any{"type": "ok"})
		go s.coord.Start(orchestrator.KindText, content)

	case "image":
		prompt, _ := req["prompt"].(string)
		if strings.TrimSpace(prompt) == "" {
			s.respond(reqID, map[string]any{"type": "error", "message": "Missing required field: prompt"})
			return false
		}
		s.respond(reqID, map[string]any{"type": "ok"})
		go s.coord.Start(orchestrator.KindImage, prompt)

	case "stop":
		if err := s.coord.Stop(); err != nil {
			s.respond(reqID, errorResponse(err))
			return false
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "regenerate":
		s.respond(reqID, map[string]any{"type": "ok"})
		go s.coord.Regenerate()

	case "conversation_new":
		title, _ := req["title"].(string)
		conv := s.store.NewConversation(store.TitleFromPrompt(title))
		s.saveConversation(conv.ID)
		s.respond(reqID, map[string]any{"type": "conversation", "conversation": conv})

	case "conversation_list":
		s.respond(reqID, map[string]any{"type": "conversations", "conversations": s.store.List()})

	case "conversation_select":
		id, _ := req["id"].(string)
		if err := s.store.Select(id); err != nil {
			s.respond(reqID, errorResponse(err))
			return false
		}
		if err := s.persist.SaveActiveID(id); err != nil {
			log.Error("Saving active conversation id failed: %v", err)
		}
		conv, _ := s.store.Get(id)
		s.respond(reqID, map[string]any{"type": "conversation", "conversation": conv})

	case "conversation_get":
		id, _ := req["id"].(string)
		var conv store.Conversation
		var ok bool
		if id == "" {
			conv, ok = s.store.Active()
		} else {
			conv, ok = s.store.Get(id)
		}
		if !ok {
			s.respond(reqID, errorResponse(store.ErrConversationNotFound))
			return false
		}
		s.respond(reqID, map[string]any{"type": "conversation", "conversation": conv})

	case "conversation_delete":
		id, _ := req["id"].(string)
		if err := s.store.Delete(id); err != nil {
			s.respond(reqID, errorResponse(err))
			return false
		}
		if err := s.persist.Delete(id); err != nil {
			log.Error("Deleting conversation %s failed: %v", id, err)
		}
		if err := s.persist.SaveActiveID(s.store.ActiveID()); err != nil {
			log.Error("Saving active conversation id failed: %v", err)
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "conversation_rename":
		id, _ := req["id"].(string)
		title, _ := req["title"].(string)
		if err := s.store.Rename(id, title); err != nil {
			s.respond(reqID, errorResponse(err))
			return false
		}
		s.saveConversation(id)
		s.respond(reqID, map[string]any{"type": "ok"})

	case "estimate_tokens":
		content, _ := req["content"].(string)
		count, err := llm.EstimateTokens(content)
		if err != nil {
			count = llm.EstimateTokensSimple(content)
		}
		s.respond(reqID, map[string]any{"type": "tokens", "count": count})

	case "shutdown":
		s.respond(reqID, map[string]any{"type": "ok"})
		log.Info("Shutting down")
		return true

	default:
		s.respond(reqID, map[string]any{"type": "error", "message": "Unknown action: " + action})
	}
	return false
}

// generationAction reports whether an action starts a generation and must
// be rejected up front while one is running. stop stays allowed.
func generationAction(action string) bool {
	switch action {
	case "send", "image", "regenerate":
		return true
	}
	return false
}

func (s *server) saveConversation(id string) {
	conv, ok := s.store.Get(id)
	if !ok {
		return
	}
	if err := s.persist.Save(conv); err != nil {
		log.Error("Saving conversation %s failed: %v", id, err)
	}
	if err := s.persist.SaveActiveID(s.store.ActiveID()); err != nil {
		log.Error("Saving active conversation id failed: %v", err)
	}
}

// Delta implements orchestrator.Notifier.
func (s *server) Delta(conversationID, messageID, content string) {
	log.Stream("chunk", content)
	s.respond("", map[string]any{
		"type":            "chunk",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"content":         content,
	})
}

// MessageFinalized implements orchestrator.Notifier.
func (s *server) MessageFinalized(conversationID string, msg store.Message) {
	s.respond("", map[string]any{
		"type":            "message",
		"conversation_id": conversationID,
		"message":         msg,
	})
}

// Warning implements orchestrator.Notifier.
func (s *server) Warning(text string) {
	s.respond("", map[string]any{"type": "warning", "message": text})
}

func (s *server) respond(reqID string, data map[string]any) {
	if reqID != "" {
		data["request_id"] = reqID
	}
	out, _ := json.Marshal(data)
	msgType, _ := data["type"].(string)

	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	log.Response(msgType, string(out))
	fmt.Fprintln(s.out, string(out))
}

func requestID(req map[string]any) string {
	switch v := req["request_id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func errorResponse(err error) map[string]any {
	return map[string]any{"type": "error", "message": userMessage(err)}
}

// userMessage maps sentinel errors to frontend-facing strings.
func userMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, store.ErrTitleEmpty):
		return "Title cannot be empty"
	case errors.Is(err, orchestrator.ErrBusy):
		return "A generation is already running"
	case errors.Is(err, orchestrator.ErrNothingActive):
		return "No generation is running"
	case errors.Is(err, image.ErrNotConfigured):
		return "Image provider not configured"
	case errors.Is(err, config.ErrNoConfig):
		return "Config file not found: ~/.config/quill/config.json"
	case errors.Is(err, config.ErrInvalidJSON):
		return "Config file is not valid JSON"
	case errors.Is(err, config.ErrInvalidImageProvider):
		return "image_provider must be \"pollinations\" or \"openai\""
	default:
		return err.Error()
	}
}
