package usecase

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

var errNotNumeric = errors.New("no numeric value")

var leadingNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

// FeatureExtractor turns a raw listing into the category's named feature vector.
// Field precedence: valid structured attribute, then description text, then
// title text, then missing.
type FeatureExtractor struct {
	tables *ScoreTables
	logger logging.Logger
}

// NewFeatureExtractor creates an extractor over the shared score tables
func NewFeatureExtractor(tables *ScoreTables, logger logging.Logger) *FeatureExtractor {
	return &FeatureExtractor{tables: tables, logger: logger}
}

// Extract builds the feature vector for raw. Engineered features are left
// missing; Preprocessor fills them. The only error is an unknown category.
func (e *FeatureExtractor) Extract(raw domain.RawListingRecord) (*domain.FeatureVector, error) {
	category, err := domain.ParseCategory(raw.Category)
	if err != nil {
		return nil, &domain.ExtractionError{Field: "category", Input: raw.Category, Err: err}
	}
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, &domain.ExtractionError{Field: "category", Input: raw.Category, Err: err}
	}

	v := domain.NewFeatureVector(category, schema.FeatureNames())
	r := &fieldReader{
		record:   &raw,
		category: category,
		tables:   e.tables,
		logger:   e.logger,
		texts:    []string{cleanListingText(raw.Description), cleanListingText(raw.Title)},
		attrs:    v.Attributes,
	}
	schema.extract(r, v)
	return v, nil
}

// CheckRequired rejects a vector whose schema-required categorical field was
// found neither in the structured attributes nor in the text.
func (e *FeatureExtractor) CheckRequired(v *domain.FeatureVector) error {
	schema, err := SchemaFor(v.Category)
	if err != nil {
		return &domain.PredictionInputError{Category: string(v.Category), Err: err}
	}
	field := schema.RequiredField()
	if _, ok := v.Attributes[field]; !ok {
		return &domain.PredictionInputError{
			Category: string(v.Category),
			Field:    field,
			Err:      domain.ErrMissingRequiredField,
		}
	}
	return nil
}

// fieldReader resolves individual fields of one record
type fieldReader struct {
	record   *domain.RawListingRecord
	category domain.Category
	tables   *ScoreTables
	logger   logging.Logger
	texts    []string
	attrs    map[string]string
}

// number resolves a numeric field. Extraction and validation failures are
// recovered here and only show up in the debug log.
func (r *fieldReader) number(field string, rng FieldRange, patterns []numberPattern) float64 {
	rejected := false

	if raw, ok := r.record.Attribute(field); ok {
		v, err := parseNumber(raw, patterns)
		switch {
		case err != nil:
			r.recovered(&domain.ExtractionError{Field: field, Input: raw, Err: err})
		case rng.Contains(v):
			return v
		default:
			rejected = true
			r.recovered(&domain.ValidationError{Field: field, Value: v, Min: rng.Min, Max: rng.Max})
		}
	}

	for _, text := range r.texts {
		for _, p := range patterns {
			for _, v := range p(text) {
				if rng.Contains(v) {
					return v
				}
				rejected = true
				r.recovered(&domain.ValidationError{Field: field, Value: v, Min: rng.Min, Max: rng.Max})
			}
		}
	}

	if rejected && rng.HasDefault {
		return rng.Default
	}
	return math.NaN()
}

// categorical scores a table-backed field and records the raw or matched
// value for display. Unknown values get the table fallback.
func (r *fieldReader) categorical(field string) float64 {
	if raw, ok := r.record.Attribute(field); ok {
		r.attrs[field] = raw
		return r.tables.Score(r.category, field, raw)
	}
	for _, text := range r.texts {
		if canonical, ok := r.tables.Match(r.category, field, text); ok {
			r.attrs[field] = canonical
			return r.tables.Score(r.category, field, canonical)
		}
	}
	return r.tables.Fallback(r.category, field)
}

// tier reads a table-backed field that may also arrive as a bare number
func (r *fieldReader) tier(field, feature string, rng FieldRange) float64 {
	if raw, ok := r.record.Attribute(field); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			r.attrs[field] = raw
			if rng.Contains(v) {
				return v
			}
			r.recovered(&domain.ValidationError{Field: feature, Value: v, Min: rng.Min, Max: rng.Max})
			return rng.Default
		}
	}
	return r.categorical(field)
}

// flag resolves a boolean. An explicit structured value wins; otherwise a
// keyword in the description or title; absence means false.
func (r *fieldReader) flag(field string, k keyword) bool {
	if raw, ok := r.record.Attribute(field); ok {
		if b, ok := parseBool(raw); ok {
			return b
		}
		r.recovered(&domain.ExtractionError{Field: field, Input: raw, Err: errors.New("not a boolean")})
	}
	for _, text := range r.texts {
		if found, v := k.detect(text); found {
			return v
		}
	}
	return false
}

func (r *fieldReader) recovered(err error) {
	if r.logger == nil {
		return
	}
	r.logger.Debug("field recovered", map[string]interface{}{
		"category": r.category,
		"error":    err.Error(),
	})
}

// parseNumber accepts a plain number, a value the field patterns recognise
// ("1 TB", "15.6 inch"), or a number with a trailing unit.
func parseNumber(raw string, patterns []numberPattern) (float64, error) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errNotNumeric
		}
		return v, nil
	}
	for _, p := range patterns {
		if vs := p(raw); len(vs) > 0 {
			return vs[0], nil
		}
	}
	if m := leadingNumber.FindStringSubmatch(raw); m != nil {
		return strconv.ParseFloat(m[1], 64)
	}
	return 0, errNotNumeric
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "t":
		return true, true
	case "false", "no", "n", "0", "f":
		return false, true
	}
	return false, false
}
