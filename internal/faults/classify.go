package faults

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
)

// Classify maps any error to exactly one code. Categorized errors keep their
// code; everything else falls back to a best-effort mapping by error kind.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeAITimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeAITimeout
		}
		return CodeExternalService
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CodeExternalService
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return CodeAIResponseParsing
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) ||
		os.IsNotExist(err) || os.IsPermission(err) {
		return CodePDFExtraction
	}

	return classifyByMessage(err.Error())
}

// classifyByMessage is the last-resort mapping for errors that carry no
// recognizable type, matching on conventional message fragments.
func classifyByMessage(msg string) Code {
	s := strings.ToLower(msg)
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return CodeAITimeout
	case strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests"):
		return CodeAIRateLimit
	case strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host"):
		return CodeExternalService
	// Matches the entity validation messages verbatim; a bare "confidence"
	// appears in too many unrelated errors to anchor on.
	case strings.Contains(s, "missing required field") || strings.Contains(s, "outside [0.0, 1.0]"):
		return CodeSchemaModel
	case strings.Contains(s, "invalid") || strings.Contains(s, "validation"):
		return CodeDataValidation
	case strings.Contains(s, "config"):
		return CodeConfiguration
	default:
		return CodeUnknown
	}
}
