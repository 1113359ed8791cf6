package domain

import "math"

// FeatureVector is an ordered mapping from feature name to numeric value.
// Missing values are stored as NaN until the preprocessor imputes them.
type FeatureVector struct {
	Category   Category
	Names      []string
	Values     []float64
	Attributes map[string]string // raw categorical strings kept for display
}

// NewFeatureVector creates a vector with every value missing
func NewFeatureVector(category Category, names []string) *FeatureVector {
	values := make([]float64, len(names))
	for i := range values {
		values[i] = math.NaN()
	}
	return &FeatureVector{
		Category:   category,
		Names:      append([]string(nil), names...),
		Values:     values,
		Attributes: make(map[string]string),
	}
}

// Index returns the position of name, or -1
func (v *FeatureVector) Index(name string) int {
	for i, n := range v.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns the value for name and whether it is present and not missing
func (v *FeatureVector) Get(name string) (float64, bool) {
	i := v.Index(name)
	if i < 0 || math.IsNaN(v.Values[i]) {
		return math.NaN(), false
	}
	return v.Values[i], true
}

// Set assigns a value to an existing feature name. Unknown names are ignored.
func (v *FeatureVector) Set(name string, value float64) {
	if i := v.Index(name); i >= 0 {
		v.Values[i] = value
	}
}

// SetBool stores a flag as 1 or 0
func (v *FeatureVector) SetBool(name string, flag bool) {
	if flag {
		v.Set(name, 1)
		return
	}
	v.Set(name, 0)
}

// Clone returns a deep copy
func (v *FeatureVector) Clone() *FeatureVector {
	attrs := make(map[string]string, len(v.Attributes))
	for k, val := range v.Attributes {
		attrs[k] = val
	}
	return &FeatureVector{
		Category:   v.Category,
		Names:      append([]string(nil), v.Names...),
		Values:     append([]float64(nil), v.Values...),
		Attributes: attrs,
	}
}

// SameSchema reports whether names matches the vector's names exactly, in order
func (v *FeatureVector) SameSchema(names []string) bool {
	if len(names) != len(v.Names) {
		return false
	}
	for i := range names {
		if names[i] != v.Names[i] {
			return false
		}
	}
	return true
}
