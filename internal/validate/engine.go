// Package validate implements the staged validation engine. Checks classify
// problems into hard issues and soft warnings; they never mutate or drop
// data. Callers decide what to do with the returned lists.
package validate

import (
	"github.com/clarimed/clarimed/internal/model"
)

// Engine runs the staged validation checks.
type Engine struct {
	strict               bool
	minAverageConfidence float64
	countTolerance       int
	fhir                 *fhirValidator
}

// NewEngine creates a validation engine. Strict mode promotes every issue to
// blocking; lenient mode lets extraction and FHIR issues pass as warnings.
func NewEngine(cfg model.ValidationConfig) (*Engine, error) {
	fv, err := newFHIRValidator()
	if err != nil {
		return nil, err
	}

	// Nil means unset; an explicit zero is a legitimate operator choice.
	minConfidence := 0.3
	if cfg.MinAverageConfidence != nil {
		minConfidence = *cfg.MinAverageConfidence
	}
	tolerance := 2
	if cfg.CountTolerance != nil {
		tolerance = *cfg.CountTolerance
	}

	return &Engine{
		strict:               cfg.Strict,
		minAverageConfidence: minConfidence,
		countTolerance:       tolerance,
		fhir:                 fv,
	}, nil
}

// Strict reports whether the engine is in strict mode.
func (e *Engine) Strict() bool {
	return e.strict
}

// verdict folds hard issues and soft warnings into the (is_valid, issues)
// pair every staged check returns. Strict mode blocks on warnings too.
func (e *Engine) verdict(hard, soft []string) (bool, []string) {
	issues := append(append([]string{}, hard...), soft...)
	if e.strict {
		return len(issues) == 0, issues
	}
	return len(hard) == 0, issues
}
