// Package storage persists small JSON state files under the data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/logger"
)

const defaultSessionFile = "session.json"

type Storage struct {
	config *config.StorageConfig
	log    *logger.Logger
	mu     sync.RWMutex
}

// Session is the cookie jar of the last successful login.
type Session struct {
	Username  string           `json:"username"`
	Cookies   []browser.Cookie `json:"cookies"`
	LastLogin time.Time        `json:"last_login"`
	IsValid   bool             `json:"is_valid"`
}

func New(cfg *config.StorageConfig, log *logger.Logger) (*Storage, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Storage{
		config: cfg,
		log:    log.WithComponent("storage"),
	}, nil
}

func (s *Storage) filepath(filename string) string {
	return filepath.Join(s.config.DataDir, filename)
}

func (s *Storage) load(filename string, v interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filepath(filename))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return nil
}

func (s *Storage) save(filename string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// session files hold credentials-equivalent cookies
	if err := os.WriteFile(s.filepath(filename), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	return nil
}

func (s *Storage) sessionFile() string {
	if s.config.SessionFile == "" {
		return defaultSessionFile
	}
	return s.config.SessionFile
}

// LoadSession returns the stored session for username, or nil when there is
// none, it was invalidated, or it belongs to another account.
func (s *Storage) LoadSession(username string) (*Session, error) {
	var session Session
	if err := s.load(s.sessionFile(), &session); err != nil {
		return nil, err
	}
	if !session.IsValid || len(session.Cookies) == 0 {
		return nil, nil
	}
	if session.Username != username {
		s.log.Debug("Stored session belongs to another account, ignoring")
		return nil, nil
	}
	return &session, nil
}

func (s *Storage) SaveSession(session *Session) error {
	if err := s.save(s.sessionFile(), session); err != nil {
		return err
	}
	s.log.Debug("Saved session with %d cookies", len(session.Cookies))
	return nil
}

// InvalidateSession keeps the file but marks it unusable.
func (s *Storage) InvalidateSession() error {
	return s.save(s.sessionFile(), &Session{IsValid: false})
}
