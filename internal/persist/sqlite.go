package persist

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/youruser/quill/internal/store"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Schema for the conversations database.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    last_updated INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    kind TEXT NOT NULL CHECK (kind IN ('text', 'image')),
    content TEXT NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    error INTEGER NOT NULL DEFAULT 0,
    error_detail TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(last_updated DESC);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);

-- Metadata table for active conversation tracking
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

const activeIDKey = "active_conversation_id"

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save replaces the stored snapshot of one conversation. Messages are
// rewritten wholesale; the store patches messages in place, so an
// insert-only log would drift from the live state.
func (s *SQLiteStore) Save(conv store.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, last_updated = excluded.last_updated`,
		conv.ID, conv.Title, conv.LastUpdated.UnixMilli())
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	insert, err := tx.Prepare(`
		INSERT INTO messages (id, conversation_id, position, role, kind, content, prompt, error, error_detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for i, msg := range conv.Messages {
		_, err := insert.Exec(msg.ID, conv.ID, i, string(msg.Role), string(msg.Kind),
			msg.Content, msg.Prompt, msg.Error, msg.ErrorDetail, msg.Timestamp.UnixMilli())
		if err != nil {
			return fmt.Errorf("save message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SaveActiveID records the selected conversation id.
func (s *SQLiteStore) SaveActiveID(id string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeIDKey, id)
	return err
}

// LoadAll returns every stored conversation, most recent first, plus the
// recorded active conversation id (empty if none was recorded).
func (s *SQLiteStore) LoadAll() ([]store.Conversation, string, error) {
	rows, err := s.db.Query(`SELECT id, title, last_updated FROM conversations ORDER BY last_updated DESC`)
	if err != nil {
		return nil, "", fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()

	var conversations []store.Conversation
	for rows.Next() {
		var conv store.Conversation
		var updated int64
		if err := rows.Scan(&conv.ID, &conv.Title, &updated); err != nil {
			return nil, "", err
		}
		conv.LastUpdated = time.UnixMilli(updated).UTC()
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	for i := range conversations {
		if conversations[i].Messages, err = s.loadMessages(conversations[i].ID); err != nil {
			return nil, "", err
		}
	}

	var activeID string
	err = s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, activeIDKey).Scan(&activeID)
	if err != nil && err != sql.ErrNoRows {
		return nil, "", err
	}

	return conversations, activeID, nil
}

func (s *SQLiteStore) loadMessages(convID string) ([]store.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, role, kind, content, prompt, error, error_detail, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY position`, convID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []store.Message
	for rows.Next() {
		var msg store.Message
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Kind, &msg.Content, &msg.Prompt,
			&msg.Error, &msg.ErrorDetail, &ts); err != nil {
			return nil, err
		}
		msg.Timestamp = time.UnixMilli(ts).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Delete removes a conversation; its messages cascade.
func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
