package domain

import "strings"

// RawListingRecord is an unprocessed listing as supplied by an ingestion source
// or an inbound prediction request. Attributes holds whatever structured columns
// exist; an absent key or an empty value means the column is null.
type RawListingRecord struct {
	Category    string            `json:"category"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Price       float64           `json:"price,omitempty"` // target; zero for inference requests
	Source      string            `json:"source,omitempty"`
}

// Attribute returns the trimmed structured value for key and whether it is present
func (r *RawListingRecord) Attribute(key string) (string, bool) {
	if r.Attributes == nil {
		return "", false
	}
	v, ok := r.Attributes[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") || strings.EqualFold(v, "nan") {
		return "", false
	}
	return v, true
}
