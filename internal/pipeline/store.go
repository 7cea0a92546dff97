package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists processing results and statuses under a directory, one
// subdirectory per document. It stands in for the database-backed persistence
// layer in local CLI runs.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Document returns the stored metadata for a document, or a minimal record
// when none has been written yet.
func (s *FileStore) Document(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.docPath(id, "document.json"))
	if os.IsNotExist(err) {
		return &Document{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, nil
}

// SaveResult writes the processing result mapping for a document.
func (s *FileStore) SaveResult(ctx context.Context, documentID string, result map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(documentID, "result.json", data)
}

// SetStatus records the document's terminal status.
func (s *FileStore) SetStatus(ctx context.Context, documentID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(documentID, "status", []byte(status+"\n"))
}

func (s *FileStore) write(documentID, name string, data []byte) error {
	dir := filepath.Join(s.dir, sanitizeID(documentID))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) docPath(documentID, name string) string {
	return filepath.Join(s.dir, sanitizeID(documentID), name)
}

// sanitizeID keeps document IDs filesystem-safe.
func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
