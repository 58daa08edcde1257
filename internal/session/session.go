// Package session keeps the durable identifier that ties this client to its
// server-side conversation.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageKey is the storage entry holding the session identifier.
const StorageKey = "chatSessionId"

// Storage is a durable key/value store owned by the client installation.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

type Manager struct {
	storage Storage
	logger  *zap.Logger
	newID   func() string
}

func NewManager(storage Storage, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ID returns the persisted session identifier, creating and storing one on first use.
func (m *Manager) ID() (string, error) {
	existing, ok, err := m.storage.Get(StorageKey)
	if err != nil {
		return "", fmt.Errorf("reading session id: %w", err)
	}

	if existing = strings.TrimSpace(existing); ok && existing != "" {
		return existing, nil
	}

	id := m.newID()
	if err := m.storage.Set(StorageKey, id); err != nil {
		return "", fmt.Errorf("persisting session id: %w", err)
	}

	m.logger.Info("created new session", zap.String("session_id", id))
	return id, nil
}
