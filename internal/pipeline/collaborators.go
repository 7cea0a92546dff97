package pipeline

import (
	"context"
	"time"

	"github.com/clarimed/clarimed/internal/model"
)

// TextResult is the outcome of extracting raw text from a source document.
type TextResult struct {
	Success      bool
	Text         string
	PageCount    int
	ErrorMessage string
	Metadata     map[string]interface{}
}

// TextExtractor turns a document file into raw text. PDF, scanned images and
// plain text sources all sit behind this interface.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (*TextResult, error)
}

// Converter maps a structured extraction to FHIR resource mappings. Every
// produced mapping carries at minimum resourceType and a subject reference.
type Converter interface {
	Convert(ctx context.Context, extraction *model.StructuredMedicalExtraction, patientID string) ([]map[string]interface{}, error)
}

// Document is the persistence-layer view of one source document.
type Document struct {
	ID        string
	Filename  string
	PatientID string
	FileSize  int64
}

// Store persists processing status and results for documents.
type Store interface {
	Document(ctx context.Context, id string) (*Document, error)
	SaveResult(ctx context.Context, documentID string, result map[string]interface{}) error
	SetStatus(ctx context.Context, documentID, status string) error
}

// AuditEvent is one append-only record of a processing or validation event.
type AuditEvent struct {
	ID       string                 `json:"id"`
	Actor    string                 `json:"actor"`
	Action   string                 `json:"action"`
	Resource string                 `json:"resource"`
	At       time.Time              `json:"at"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AuditSink receives audit events. Sinks must tolerate duplicate delivery.
type AuditSink interface {
	Append(ctx context.Context, event AuditEvent) error
}
