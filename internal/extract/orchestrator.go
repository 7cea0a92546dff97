package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/cache"
	"github.com/clarimed/clarimed/internal/faults"
	"github.com/clarimed/clarimed/internal/llm"
	"github.com/clarimed/clarimed/internal/model"
	"github.com/clarimed/clarimed/internal/monitor"
	"github.com/clarimed/clarimed/internal/worker"
)

const component = "extraction"

// DocContext carries per-document extraction parameters.
type DocContext struct {
	// DocumentType is an optional hint passed to the backends
	DocumentType string
}

// Orchestrator drives the backend chain: primary AI backend, secondary AI
// backend, then the degraded regex extractor. Backend calls within one
// extraction are strictly sequential; a primary failure (or timeout) must
// complete before the secondary is attempted.
type Orchestrator struct {
	primary   llm.Provider
	secondary llm.Provider
	degraded  *DegradedExtractor

	breaker        *gobreaker.CircuitBreaker
	limiter        *worker.Limiter
	store          cache.Cache
	cacheTTL       time.Duration
	version        string
	primaryModel   string
	secondaryModel string
	collector      *monitor.Collector
	logger         *zap.Logger
	session        *Session
}

// NewOrchestrator builds the orchestrator from configuration. Either backend
// may be unconfigured; with both absent, every extraction takes the degraded
// path (or fails when that is disabled too).
func NewOrchestrator(cfg *model.Config, store cache.Cache, collector *monitor.Collector, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	primary, err := llm.NewProvider(llm.ConfigFromModel(cfg.Primary))
	if err != nil {
		return nil, err
	}
	secondary, err := llm.NewProvider(llm.ConfigFromModel(cfg.Secondary))
	if err != nil {
		return nil, err
	}

	var degraded *DegradedExtractor
	if cfg.Extraction.DegradedEnabled {
		degraded = NewDegradedExtractor(cfg.Extraction.DegradedConfidence)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "primary-backend",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	rps := cfg.Concurrency.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Orchestrator{
		primary:        primary,
		secondary:      secondary,
		degraded:       degraded,
		breaker:        breaker,
		limiter:        worker.NewLimiter(rps, cfg.Concurrency.Burst),
		store:          store,
		cacheTTL:       cfg.Cache.TTL,
		version:        cfg.Extraction.Version,
		primaryModel:   cfg.Primary.Model,
		secondaryModel: cfg.Secondary.Model,
		collector:      collector,
		logger:         logger,
		session:        NewSession(logger),
	}, nil
}

// Session exposes the orchestrator's cumulative session statistics.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Close finalizes the orchestrator's session.
func (o *Orchestrator) Close() {
	o.session.Close()
}

// Extract turns raw text into a structured extraction, or fails with a
// categorized error only when every configured path has failed. This strict
// entry point re-raises after logging; callers that want graceful
// degradation use ExtractFields.
func (o *Orchestrator) Extract(ctx context.Context, text string, docCtx DocContext) (*model.StructuredMedicalExtraction, error) {
	started := time.Now()
	o.session.RecordAttempt()

	cacheKey := o.cacheKey(text, docCtx)
	if cached, ok := o.cacheGet(cacheKey); ok {
		o.logger.Debug("extraction cache hit", zap.String("key", cacheKey))
		o.session.RecordSuccess(time.Since(started))
		return cached, nil
	}

	var lastErr error

	if o.primary != nil {
		extraction, err := o.extractPrimary(ctx, text, docCtx)
		if err == nil {
			o.finish(extraction, cacheKey, started, o.primary.Name())
			return extraction, nil
		}
		lastErr = err
		o.recordBackendFailure(o.primary.Name(), err)
	}

	if o.secondary != nil {
		extraction, err := o.extractWith(ctx, o.secondary, text, docCtx)
		if err == nil {
			o.finish(extraction, cacheKey, started, o.secondary.Name())
			return extraction, nil
		}
		lastErr = err
		o.recordBackendFailure(o.secondary.Name(), err)
	}

	if o.degraded != nil {
		extraction := o.degraded.Extract(text)
		extraction.DocumentType = orDefault(docCtx.DocumentType, extraction.DocumentType)
		o.logger.Warn("all AI backends unavailable, degraded extraction used",
			zap.Int("entities", extraction.TotalEntities()),
		)
		o.finish(extraction, cacheKey, started, "degraded")
		return extraction, nil
	}

	failure := faults.Wrap(faults.CodeAIExtraction, "all extraction backends failed", lastErr)
	o.session.RecordError(failure, time.Since(started))
	if o.collector != nil {
		o.collector.RecordError(failure, component)
	}
	o.logger.Error("extraction failed", zap.Error(failure))
	return nil, failure
}

// ExtractFields is the legacy-compatible entry point: it never propagates an
// error, returning a graceful empty payload with error fields populated and
// zeroed confidence and counts instead.
func (o *Orchestrator) ExtractFields(ctx context.Context, text string, docCtx DocContext) map[string]interface{} {
	extraction, err := o.Extract(ctx, text, docCtx)
	if err != nil {
		code := faults.Classify(err)
		return map[string]interface{}{
			"diagnoses":             []string{},
			"medications":           []string{},
			"lab_results":           map[string]string{},
			"vital_signs":           map[string]string{},
			"providers":             map[string]string{},
			"extraction_confidence": 0.0,
			"total_items_extracted": 0,
			"error":                 err.Error(),
			"error_code":            string(code),
			"recovery_strategy":     string(faults.RecoveryStrategy(code)),
		}
	}
	return extraction.LegacyFields()
}

// extractPrimary wraps the primary call in the rate limiter and the circuit
// breaker; an open breaker short-circuits straight to the secondary.
func (o *Orchestrator) extractPrimary(ctx context.Context, text string, docCtx DocContext) (*model.StructuredMedicalExtraction, error) {
	if err := o.limiter.Wait(ctx, o.primary.Name()); err != nil {
		return nil, err
	}

	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.callBackend(ctx, o.primary, text, docCtx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.StructuredMedicalExtraction), nil
}

func (o *Orchestrator) extractWith(ctx context.Context, provider llm.Provider, text string, docCtx DocContext) (*model.StructuredMedicalExtraction, error) {
	if err := o.limiter.Wait(ctx, provider.Name()); err != nil {
		return nil, err
	}
	return o.callBackend(ctx, provider, text, docCtx)
}

func (o *Orchestrator) callBackend(ctx context.Context, provider llm.Provider, text string, docCtx DocContext) (*model.StructuredMedicalExtraction, error) {
	resp, err := provider.Extract(ctx, llm.ExtractRequest{
		Text:         text,
		DocumentType: docCtx.DocumentType,
	})
	if err != nil {
		return nil, err
	}

	extraction := resp.Extraction
	if extraction.DocumentType == "" {
		extraction.DocumentType = docCtx.DocumentType
	}
	return extraction, nil
}

// finish logs per-entity-type counts, stores the result in the cache, and
// updates the session.
func (o *Orchestrator) finish(extraction *model.StructuredMedicalExtraction, cacheKey string, started time.Time, backend string) {
	counts := extraction.EntityCounts()
	o.logger.Info("extraction complete",
		zap.String("backend", backend),
		zap.Float64("confidence_average", extraction.ConfidenceAverage),
		zap.Int("total_entities", extraction.TotalEntities()),
		zap.Any("entity_counts", counts),
		zap.Duration("elapsed", time.Since(started)),
	)
	o.cacheSet(cacheKey, extraction)
	o.session.RecordSuccess(time.Since(started))
}

func (o *Orchestrator) recordBackendFailure(backend string, err error) {
	o.logger.Warn("backend extraction failed, falling through",
		zap.String("backend", backend),
		zap.Error(err),
	)
	if o.collector != nil {
		o.collector.RecordError(err, component)
	}
}

// cacheKey derives the content-addressed key for one (text, context) pair.
// The context parameters identify the backend stack, the configured models
// and the extraction version so config changes invalidate old entries.
func (o *Orchestrator) cacheKey(text string, docCtx DocContext) string {
	params := map[string]string{
		"version":       o.version,
		"document_type": docCtx.DocumentType,
	}
	if o.primary != nil {
		params["primary"] = o.primary.Name()
		params["primary_model"] = o.primaryModel
	}
	if o.secondary != nil {
		params["secondary"] = o.secondary.Name()
		params["secondary_model"] = o.secondaryModel
	}
	return cache.Key(text, params)
}

func (o *Orchestrator) cacheGet(key string) (*model.StructuredMedicalExtraction, bool) {
	if o.store == nil {
		return nil, false
	}
	data, found := o.store.Get(key)
	if !found {
		return nil, false
	}

	var extraction model.StructuredMedicalExtraction
	if err := json.Unmarshal(data, &extraction); err != nil {
		o.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		_ = o.store.Delete(key)
		return nil, false
	}
	extraction.Finalize()
	return &extraction, true
}

func (o *Orchestrator) cacheSet(key string, extraction *model.StructuredMedicalExtraction) {
	if o.store == nil {
		return
	}
	// Degraded results never enter the cache; a cached fallback would keep
	// serving 0.3-confidence data after the backends recover.
	if extraction.FallbackUsed {
		return
	}
	data, err := json.Marshal(extraction)
	if err != nil {
		return
	}
	if err := o.store.Set(key, data, o.cacheTTL); err != nil {
		o.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
