package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spigell/recruitgenie/internal/gateway"

	_ "modernc.org/sqlite"
)

// Store persists conversation turns and the latest extracted hiring profile per session.
type Store interface {
	AppendMessage(ctx context.Context, sessionID, role, text string) (gateway.Message, error)
	Messages(ctx context.Context, sessionID string) ([]gateway.Message, error)
	SaveExtractedData(ctx context.Context, sessionID string, data map[string]any) error
	// ExtractedData returns nil when nothing was stored for the session.
	ExtractedData(ctx context.Context, sessionID string) (map[string]any, error)
	Close() error
}

// SQLiteStore implements Store on top of modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (and creates when missing) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// a single writer keeps sqlite from returning SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

	CREATE TABLE IF NOT EXISTS extracted_data (
		session_id TEXT PRIMARY KEY,
		data_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// AppendMessage stores a turn and returns it with its assigned id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, role, text string) (gateway.Message, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, text, s.now().UnixMilli(),
	)
	if err != nil {
		return gateway.Message{}, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return gateway.Message{}, fmt.Errorf("last insert id: %w", err)
	}

	return gateway.Message{ID: strconv.FormatInt(id, 10), Role: role, Text: text}, nil
}

// Messages returns the session history in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]gateway.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, text FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]gateway.Message, 0)
	for rows.Next() {
		var (
			id  int64
			msg gateway.Message
		)
		if err := rows.Scan(&id, &msg.Role, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.ID = strconv.FormatInt(id, 10)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// SaveExtractedData replaces the stored profile for the session.
func (s *SQLiteStore) SaveExtractedData(ctx context.Context, sessionID string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extracted_data (session_id, data_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			data_json = excluded.data_json,
			updated_at = excluded.updated_at`,
		sessionID, string(payload), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert extracted data: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ExtractedData(ctx context.Context, sessionID string) (map[string]any, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT data_json FROM extracted_data WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query extracted data: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}

	return data, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
