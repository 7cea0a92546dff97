// Package faults defines the closed error taxonomy for the extraction
// pipeline: every failure is categorized into exactly one error code, and
// every code carries a recovery strategy, a severity, and a retry policy.
package faults

import "time"

// Code identifies an error category. The code strings are wire-stable
// identifiers consumed by operator dashboards and downstream task queues.
type Code string

const (
	CodePDFExtraction     Code = "PDF_EXTRACTION_ERROR"
	CodeAIExtraction      Code = "AI_EXTRACTION_ERROR"
	CodeAITimeout         Code = "AI_SERVICE_TIMEOUT"
	CodeAIRateLimit       Code = "AI_SERVICE_RATE_LIMIT"
	CodeAIResponseParsing Code = "AI_RESPONSE_PARSING_ERROR"
	CodeFHIRConversion    Code = "FHIR_CONVERSION_ERROR"
	CodeFHIRValidation    Code = "FHIR_VALIDATION_ERROR"
	CodeDataValidation    Code = "DATA_VALIDATION_ERROR"
	CodeSchemaModel       Code = "PYDANTIC_MODEL_ERROR" // schema-validation failure; code string kept for dashboard compatibility
	CodeExternalService   Code = "EXTERNAL_SERVICE_ERROR"
	CodeConfiguration     Code = "CONFIGURATION_ERROR"
	CodeTaskDispatch      Code = "CELERY_TASK_ERROR" // task-queue failure; code string kept for dashboard compatibility
	CodeUnknown           Code = "UNKNOWN_ERROR"
)

// Strategy is the recommended remediation action for an error code.
type Strategy string

const (
	StrategyRetryWithBackoff   Strategy = "retry_with_backoff"
	StrategyWaitAndRetry       Strategy = "wait_and_retry"
	StrategyFallbackExtraction Strategy = "fallback_extraction"
	StrategyManualReview       Strategy = "manual_review_required"
	StrategyRelaxedValidation  Strategy = "relaxed_validation"
	StrategyBasicExtraction    Strategy = "basic_extraction"
	StrategyRetryOrSkip        Strategy = "retry_or_skip"
	StrategyManualIntervention Strategy = "manual_intervention"
)

// Severity classifies operational impact of an error.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// strategies maps every code to its recovery strategy.
var strategies = map[Code]Strategy{
	CodePDFExtraction:     StrategyManualIntervention,
	CodeAIExtraction:      StrategyFallbackExtraction,
	CodeAITimeout:         StrategyRetryWithBackoff,
	CodeAIRateLimit:       StrategyWaitAndRetry,
	CodeAIResponseParsing: StrategyBasicExtraction,
	CodeFHIRConversion:    StrategyManualReview,
	CodeFHIRValidation:    StrategyRelaxedValidation,
	CodeDataValidation:    StrategyRelaxedValidation,
	CodeSchemaModel:       StrategyBasicExtraction,
	CodeExternalService:   StrategyRetryOrSkip,
	CodeConfiguration:     StrategyManualIntervention,
	CodeTaskDispatch:      StrategyRetryOrSkip,
	CodeUnknown:           StrategyManualIntervention,
}

// RecoveryStrategy returns the strategy for a code; unmapped codes default to
// manual intervention.
func RecoveryStrategy(code Code) Strategy {
	if s, ok := strategies[code]; ok {
		return s
	}
	return StrategyManualIntervention
}

// CodeSeverity classifies a code: transient backend pressure is a warning,
// pipeline-stage failures are errors, anything else is critical.
func CodeSeverity(code Code) Severity {
	switch code {
	case CodeAITimeout, CodeAIRateLimit:
		return SeverityWarning
	case CodePDFExtraction, CodeAIExtraction, CodeAIResponseParsing,
		CodeFHIRConversion, CodeFHIRValidation, CodeTaskDispatch:
		return SeverityError
	default:
		return SeverityCritical
	}
}

// DefaultRateLimitDelay is used when the backend provides no retry-after hint.
const DefaultRateLimitDelay = 30 * time.Second

// timeoutRetryDelay is the fixed wait before retrying a timed-out backend call.
const timeoutRetryDelay = 60 * time.Second

// RetryDelay returns the delay before a retry and whether an automatic retry
// is permitted at all. retryAfter is the backend-provided hint for rate-limit
// responses (zero when absent). Non-transient codes never auto-retry: they
// surface immediately as terminal failures.
func RetryDelay(code Code, retryAfter time.Duration) (time.Duration, bool) {
	switch code {
	case CodeAITimeout:
		return timeoutRetryDelay, true
	case CodeAIRateLimit:
		if retryAfter > 0 {
			return retryAfter, true
		}
		return DefaultRateLimitDelay, true
	default:
		return 0, false
	}
}
