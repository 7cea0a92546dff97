package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileAuditSink appends audit events as JSON lines to a single file. Writes
// are serialized; the file is opened lazily and kept open for the sink's
// lifetime.
type FileAuditSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileAuditSink creates a sink writing to path.
func NewFileAuditSink(path string) *FileAuditSink {
	return &FileAuditSink{path: path}
}

// Append writes one event as a JSON line.
func (s *FileAuditSink) Append(ctx context.Context, event AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		s.file = f
	}

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *FileAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
