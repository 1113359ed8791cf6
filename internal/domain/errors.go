package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory is returned when a category tag is not mobile, laptop or furniture
	ErrUnknownCategory = errors.New("unknown category")

	// ErrMissingRequiredField is returned when a field required by the category schema is absent
	ErrMissingRequiredField = errors.New("required field missing")

	// ErrModelNotLoaded is returned when no bundle is loaded for the requested category
	ErrModelNotLoaded = errors.New("no model loaded for category")

	// ErrInsufficientData is returned when too few rows survive filtering
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrDegenerateSplit is returned when a train/test split leaves a partition empty
	ErrDegenerateSplit = errors.New("degenerate train/test split")

	// ErrFeatureMismatch is returned when feature names disagree between artifacts or with a vector
	ErrFeatureMismatch = errors.New("feature names mismatch")

	// ErrChecksumMismatch is returned when a persisted artifact fails checksum verification
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// ExtractionError reports text or a structured value that could not be parsed.
// The extractor recovers from it by nulling the field.
type ExtractionError struct {
	Field string
	Input string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("extract %s from %q: %v", e.Field, e.Input, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError reports a parsed value outside its plausible range.
// The extractor recovers from it by nulling or defaulting the field.
type ValidationError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s=%g outside valid range [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// TrainingDataError aborts a training run. No bundle is written when it occurs.
type TrainingDataError struct {
	Category Category
	Rows     int
	Reason   string
	Err      error
}

func (e *TrainingDataError) Error() string {
	return fmt.Sprintf("training data error for %s (%d rows): %s", e.Category, e.Rows, e.Reason)
}

func (e *TrainingDataError) Unwrap() error { return e.Err }

// ArtifactLoadError reports a missing or inconsistent bundle, scaler or metadata document
type ArtifactLoadError struct {
	Category Category
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load artifacts for %s from %s: %v", e.Category, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// PredictionInputError rejects a request instead of guessing a default
type PredictionInputError struct {
	Category string
	Field    string
	Err      error
}

func (e *PredictionInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s request: field %q: %v", e.Category, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid request for category %q: %v", e.Category, e.Err)
}

func (e *PredictionInputError) Unwrap() error { return e.Err }
