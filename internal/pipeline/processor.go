package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/extract"
	"github.com/clarimed/clarimed/internal/faults"
	"github.com/clarimed/clarimed/internal/model"
	"github.com/clarimed/clarimed/internal/monitor"
	"github.com/clarimed/clarimed/internal/validate"
)

// Terminal document statuses.
const (
	StatusCompleted = "completed"
	StatusReview    = "review"
	StatusFailed    = "failed"
)

// Result is the assembled outcome of processing one document.
type Result struct {
	Success      bool
	Status       string
	OriginalText string
	Extraction   *model.StructuredMedicalExtraction
	Resources    []map[string]interface{}
	Issues       []string
	Errors       []faults.Record
	SessionStats map[string]interface{}
}

// Map flattens the result into the plain mapping handed to callers and the
// persistence layer.
func (r *Result) Map() map[string]interface{} {
	structured := map[string]interface{}{}
	if r.Extraction != nil {
		if m, err := r.Extraction.ToMap(); err == nil {
			structured = m
		}
	}

	resources := r.Resources
	if resources == nil {
		resources = []map[string]interface{}{}
	}

	out := map[string]interface{}{
		"success":           r.Success,
		"status":            r.Status,
		"original_text":     r.OriginalText,
		"structured_data":   structured,
		"fhir_resources":    resources,
		"validation_issues": r.Issues,
		"errors":            errorMessages(r.Errors),
	}
	if len(r.Errors) > 0 {
		first := r.Errors[0]
		out["error"] = first.Message
		out["error_code"] = string(first.Code)
		out["recovery_strategy"] = string(faults.RecoveryStrategy(first.Code))
	}
	if r.SessionStats != nil {
		out["processing_stats"] = r.SessionStats
	}
	return out
}

func errorMessages(records []faults.Record) []string {
	msgs := make([]string, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Message)
	}
	return msgs
}

// Processor runs one document through the full staged pipeline: text
// extraction, quality validation, AI extraction, structured validation, FHIR
// conversion and the downstream validation gates. A conversion or validation
// failure after a successful extraction never discards the structured data;
// the document lands in review instead of failed.
type Processor struct {
	extractor    TextExtractor
	orchestrator *extract.Orchestrator
	engine       *validate.Engine
	converter    Converter
	store        Store
	audit        AuditSink
	collector    *monitor.Collector
	logger       *zap.Logger
}

// NewProcessor wires the pipeline from its collaborators. The converter,
// store, audit sink and collector are optional; nil disables that stage.
func NewProcessor(
	extractor TextExtractor,
	orchestrator *extract.Orchestrator,
	engine *validate.Engine,
	converter Converter,
	store Store,
	audit AuditSink,
	collector *monitor.Collector,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		extractor:    extractor,
		orchestrator: orchestrator,
		engine:       engine,
		converter:    converter,
		store:        store,
		audit:        audit,
		collector:    collector,
		logger:       logger,
	}
}

// Process runs the staged pipeline for one document file.
func (p *Processor) Process(ctx context.Context, doc Document, path string) *Result {
	started := time.Now()
	result := &Result{Status: StatusFailed}

	p.auditEvent(ctx, doc, "processing_started", map[string]interface{}{
		"filename": doc.Filename,
		"path":     path,
	})

	// Stage 1: raw text
	text, err := p.extractText(ctx, path)
	if err != nil {
		p.fail(ctx, doc, result, err)
		return result
	}
	result.OriginalText = text

	// Stage 2: text quality gate
	if ok, issues := p.engine.ValidateTextQuality(text); !ok {
		result.Issues = append(result.Issues, issues...)
		p.fail(ctx, doc, result, faults.New(faults.CodeDataValidation, "document text failed quality validation"))
		return result
	} else {
		result.Issues = append(result.Issues, issues...)
	}

	// Stage 3: AI extraction
	extraction, err := p.orchestrator.Extract(ctx, text, extract.DocContext{})
	if err != nil {
		p.fail(ctx, doc, result, err)
		return result
	}
	result.Extraction = extraction
	result.SessionStats = p.orchestrator.Session().Stats()

	// From here on the structured data is preserved no matter what fails.
	result.Status = StatusCompleted
	result.Success = true

	// Stage 4: structured validation
	if ok, issues := p.engine.ValidateExtraction(extraction); !ok {
		result.Issues = append(result.Issues, issues...)
		p.review(ctx, doc, result, faults.New(faults.CodeDataValidation, "structured extraction failed validation"))
	} else {
		result.Issues = append(result.Issues, issues...)
	}

	// Stage 5: FHIR conversion and downstream gates
	if p.converter != nil {
		p.convertAndValidate(ctx, doc, result)
	}

	// Final completeness gate over the assembled result
	if ok, issues := p.engine.ValidateCompleteness(result.Map()); !ok {
		result.Issues = append(result.Issues, issues...)
		p.review(ctx, doc, result, faults.New(faults.CodeDataValidation, "processing result failed completeness validation"))
	} else {
		result.Issues = append(result.Issues, issues...)
	}

	p.persist(ctx, doc, result)
	p.auditEvent(ctx, doc, "processing_finished", map[string]interface{}{
		"status":  result.Status,
		"elapsed": time.Since(started).Seconds(),
	})

	p.logger.Info("document processed",
		zap.String("document_id", doc.ID),
		zap.String("status", result.Status),
		zap.Int("issues", len(result.Issues)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result
}

func (p *Processor) extractText(ctx context.Context, path string) (string, error) {
	if p.extractor == nil {
		return "", faults.New(faults.CodeConfiguration, "no text extractor configured")
	}
	res, err := p.extractor.ExtractText(ctx, path)
	if err != nil {
		return "", faults.Wrap(faults.CodePDFExtraction, "text extraction failed", err)
	}
	if !res.Success {
		return "", faults.New(faults.CodePDFExtraction, "text extraction failed: "+res.ErrorMessage)
	}
	return res.Text, nil
}

func (p *Processor) convertAndValidate(ctx context.Context, doc Document, result *Result) {
	resources, err := p.converter.Convert(ctx, result.Extraction, doc.PatientID)
	if err != nil {
		p.review(ctx, doc, result, faults.Wrap(faults.CodeFHIRConversion, "FHIR conversion failed", err))
		return
	}
	result.Resources = resources

	if ok, issues := p.engine.ValidateFHIRResources(resources); !ok {
		result.Issues = append(result.Issues, issues...)
		p.review(ctx, doc, result, faults.New(faults.CodeFHIRValidation, "FHIR resources failed validation"))
	} else {
		result.Issues = append(result.Issues, issues...)
	}

	_, issues := p.engine.ValidateConsistency(result.Extraction, resources)
	result.Issues = append(result.Issues, issues...)
}

// fail records a hard failure before any structured data exists.
func (p *Processor) fail(ctx context.Context, doc Document, result *Result, err error) {
	result.Success = false
	result.Status = StatusFailed
	result.Errors = append(result.Errors, faults.NewRecord(err))
	if p.orchestrator != nil {
		result.SessionStats = p.orchestrator.Session().Stats()
	}
	if p.collector != nil {
		p.collector.RecordError(err, "pipeline")
	}
	p.logger.Error("document processing failed",
		zap.String("document_id", doc.ID),
		zap.Error(err),
	)
	p.persist(ctx, doc, result)
	p.auditEvent(ctx, doc, "processing_failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// review demotes a result to the review state, keeping extracted data.
func (p *Processor) review(ctx context.Context, doc Document, result *Result, err error) {
	result.Status = StatusReview
	result.Errors = append(result.Errors, faults.NewRecord(err))
	if p.collector != nil {
		p.collector.RecordError(err, "pipeline")
	}
	p.logger.Warn("document needs manual review",
		zap.String("document_id", doc.ID),
		zap.Error(err),
	)
	p.auditEvent(ctx, doc, "review_required", map[string]interface{}{
		"error": err.Error(),
	})
}

func (p *Processor) persist(ctx context.Context, doc Document, result *Result) {
	if p.store == nil || doc.ID == "" {
		return
	}
	if err := p.store.SaveResult(ctx, doc.ID, result.Map()); err != nil {
		p.logger.Warn("saving processing result failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
	if err := p.store.SetStatus(ctx, doc.ID, result.Status); err != nil {
		p.logger.Warn("updating document status failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
}

func (p *Processor) auditEvent(ctx context.Context, doc Document, action string, metadata map[string]interface{}) {
	if p.audit == nil {
		return
	}
	event := AuditEvent{
		ID:       uuid.NewString(),
		Actor:    "pipeline",
		Action:   action,
		Resource: "document/" + doc.ID,
		At:       time.Now().UTC(),
		Metadata: metadata,
	}
	if err := p.audit.Append(ctx, event); err != nil {
		p.logger.Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}
