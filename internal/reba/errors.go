package reba

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompleteAssessment matches *IncompleteAssessmentError.
	ErrIncompleteAssessment = errors.New("incomplete assessment")
	// ErrInvalidParameter matches *InvalidParameterError.
	ErrInvalidParameter = errors.New("invalid assessment parameter")
	// ErrScoreOutOfRange is returned when a final score falls outside 1..15,
	// which means the lookup tables are corrupt.
	ErrScoreOutOfRange = errors.New("score out of range")
)

// IncompleteAssessmentError is returned in strict mode when one or more body
// parts could not be scored.
type IncompleteAssessmentError struct {
	Parts []BodyPart
}

func (e *IncompleteAssessmentError) Error() string {
	names := make([]string, len(e.Parts))
	for i, p := range e.Parts {
		names[i] = string(p)
	}
	return fmt.Sprintf("incomplete assessment: insufficient data for %s", strings.Join(names, ", "))
}

func (e *IncompleteAssessmentError) Is(target error) bool {
	return target == ErrIncompleteAssessment
}

// InvalidParameterError reports an assessment parameter rejected before
// scoring.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid assessment parameter %s: %s", e.Field, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}
