package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per line to <dir>/<username>_activity.json.
// Existing content is never truncated.
type JSONLSink struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func NewJSONLSink(dir, username string) (*JSONLSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity directory: %w", err)
	}

	path := filepath.Join(dir, FileName(username))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}

	return &JSONLSink{path: path, file: f}, nil
}

// FileName is the per-user activity log name.
func FileName(username string) string {
	return username + "_activity.json"
}

func (s *JSONLSink) Path() string {
	return s.path
}

func (s *JSONLSink) Write(ctx context.Context, o Outcome) error {
	line, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("activity log %s is closed", s.path)
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
