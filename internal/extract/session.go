package extract

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/faults"
)

// Session accumulates statistics over one processing scope. Callers must
// invoke Close at the end of the scope; the summary is logged exactly once.
type Session struct {
	mu sync.Mutex

	id        string
	startedAt time.Time

	attempts        int
	successes       int
	errorCount      int
	totalProcessing time.Duration
	errors          []faults.Record

	logger    *zap.Logger
	closeOnce sync.Once
}

// NewSession creates a session with a fresh identifier.
func NewSession(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		logger:    logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// RecordAttempt counts one extraction attempt.
func (s *Session) RecordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

// RecordSuccess counts one successful extraction and its duration.
func (s *Session) RecordSuccess(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
	s.totalProcessing += elapsed
}

// RecordError counts one failed extraction and keeps its record.
func (s *Session) RecordError(err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	s.totalProcessing += elapsed
	s.errors = append(s.errors, faults.NewRecord(err))
}

// Errors returns a copy of the per-session error records.
func (s *Session) Errors() []faults.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]faults.Record, len(s.errors))
	copy(out, s.errors)
	return out
}

// Stats returns the cumulative session statistics.
func (s *Session) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	successRate := 0.0
	if s.attempts > 0 {
		successRate = float64(s.successes) / float64(s.attempts)
	}

	return map[string]interface{}{
		"session_id":             s.id,
		"extraction_attempts":    s.attempts,
		"successful_extractions": s.successes,
		"errors_encountered":     s.errorCount,
		"total_processing_time":  s.totalProcessing.Seconds(),
		"success_rate":           successRate,
	}
}

// Close logs the session summary. Safe to call more than once; only the
// first call logs.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		stats := s.Stats()
		s.logger.Info("extraction session closed",
			zap.String("session_id", s.id),
			zap.Duration("lifetime", time.Since(s.startedAt)),
			zap.Any("stats", stats),
		)
	})
}
