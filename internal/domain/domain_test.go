package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/backend/internal/ml"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Category
		wantErr bool
	}{
		{name: "lowercase", input: "mobile", want: CategoryMobile},
		{name: "mixed case with spaces", input: "  Laptop ", want: CategoryLaptop},
		{name: "furniture", input: "FURNITURE", want: CategoryFurniture},
		{name: "unknown", input: "car", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawListingRecordAttribute(t *testing.T) {
	r := RawListingRecord{Attributes: map[string]string{
		"brand": "  Apple ",
		"ram":   "",
		"gpu":   "NaN",
		"cpu":   "null",
	}}

	v, ok := r.Attribute("brand")
	assert.True(t, ok)
	assert.Equal(t, "Apple", v)

	for _, key := range []string{"ram", "gpu", "cpu", "missing"} {
		_, ok := r.Attribute(key)
		assert.False(t, ok, key)
	}
}

func TestFeatureVector(t *testing.T) {
	v := NewFeatureVector(CategoryMobile, []string{"a", "b"})
	_, ok := v.Get("a")
	assert.False(t, ok, "new vectors start missing")

	v.Set("a", 3)
	v.SetBool("b", true)
	v.Set("unknown", 9)

	got, ok := v.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, []float64{3, 1}, v.Values)

	clone := v.Clone()
	clone.Set("a", 5)
	assert.Equal(t, 3.0, v.Values[0])

	assert.True(t, v.SameSchema([]string{"a", "b"}))
	assert.False(t, v.SameSchema([]string{"b", "a"}))
}

func TestTargetTransform(t *testing.T) {
	tr, err := ParseTargetTransform("log1p")
	require.NoError(t, err)
	assert.InDelta(t, 12345.0, tr.Invert(tr.Apply(12345)), 1e-6)

	none, err := ParseTargetTransform("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, none.Apply(7))

	_, err = ParseTargetTransform("sqrt")
	assert.Error(t, err)
}

func validBundle() *ModelBundle {
	names := []string{"x", "y"}
	scaler := ml.RobustScaler{Center: []float64{0, 0}, Scale: []float64{1, 1}}
	return &ModelBundle{
		Category:     CategoryLaptop,
		FeatureNames: names,
		Members: []EnsembleMember{
			{Name: "a", Weight: 0.7, Model: ml.TreeEnsemble{NumFeatures: 2}},
			{Name: "b", Weight: 0.3, Model: ml.TreeEnsemble{NumFeatures: 2}},
		},
		Scaler:   FittedScaler{FeatureNames: names, ImputeMedians: []float64{1, 2}, Scaler: scaler},
		Metadata: BundleMetadata{FeatureNames: names},
	}
}

func TestModelBundleValidate(t *testing.T) {
	require.NoError(t, validBundle().Validate())

	t.Run("weights must sum to one", func(t *testing.T) {
		b := validBundle()
		b.Members[1].Weight = 0.31
		assert.Error(t, b.Validate())
	})

	t.Run("metadata names must match", func(t *testing.T) {
		b := validBundle()
		b.Metadata.FeatureNames = []string{"y", "x"}
		assert.True(t, errors.Is(b.Validate(), ErrFeatureMismatch))
	})

	t.Run("member width must match", func(t *testing.T) {
		b := validBundle()
		b.Members[0].Model.NumFeatures = 3
		assert.ErrorIs(t, b.Validate(), ErrFeatureMismatch)
	})
}

func TestPredictionRequestToRecord(t *testing.T) {
	ram := 6.0
	fiveG := true
	req := PredictionRequest{
		Category: "mobile",
		Title:    "iPhone 14 Pro",
		Brand:    "Apple",
		RAM:      &ram,
		Has5G:    &fiveG,
	}

	r := req.ToRecord()
	assert.Equal(t, "mobile", r.Category)
	assert.Equal(t, "iPhone 14 Pro", r.Title)
	assert.Equal(t, map[string]string{"brand": "Apple", "ram": "6", "has_5g": "true"}, r.Attributes)
}

func TestErrorsUnwrap(t *testing.T) {
	err := &PredictionInputError{Category: "boat", Err: ErrUnknownCategory}
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Contains(t, err.Error(), "boat")

	var target *PredictionInputError
	assert.True(t, errors.As(error(err), &target))
}
