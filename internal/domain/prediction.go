package domain

import "strconv"

// PredictionRequest is the inbound request body. Fields that do not apply to
// the category are ignored; nil means the field was not supplied.
type PredictionRequest struct {
	Category    string `json:"category" binding:"required"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition,omitempty"`

	Brand       string   `json:"brand,omitempty"`
	RAM         *float64 `json:"ram,omitempty"`
	Storage     *float64 `json:"storage,omitempty"`
	Camera      *float64 `json:"camera,omitempty"`
	Battery     *float64 `json:"battery,omitempty"`
	ScreenSize  *float64 `json:"screen_size,omitempty"`
	AgeMonths   *float64 `json:"age_months,omitempty"`
	Has5G       *bool    `json:"has_5g,omitempty"`
	HasPTA      *bool    `json:"has_pta,omitempty"`
	HasAMOLED   *bool    `json:"has_amoled,omitempty"`
	HasWarranty *bool    `json:"has_warranty,omitempty"`
	HasBox      *bool    `json:"has_box,omitempty"`

	Processor     string   `json:"processor,omitempty"`
	Generation    *float64 `json:"generation,omitempty"`
	GPU           string   `json:"gpu,omitempty"`
	HasSSD        *bool    `json:"has_ssd,omitempty"`
	IsGaming      *bool    `json:"is_gaming,omitempty"`
	IsTouchscreen *bool    `json:"is_touchscreen,omitempty"`

	Material         string   `json:"material,omitempty"`
	FurnitureType    string   `json:"furniture_type,omitempty"`
	FurnitureSubtype string   `json:"furniture_subtype,omitempty"`
	SeatingCapacity  *float64 `json:"seating_capacity,omitempty"`
	IsImported       *bool    `json:"is_imported,omitempty"`
	IsHandmade       *bool    `json:"is_handmade,omitempty"`
	HasStorage       *bool    `json:"has_storage,omitempty"`
	IsModern         *bool    `json:"is_modern,omitempty"`
	IsAntique        *bool    `json:"is_antique,omitempty"`
}

// ToRecord converts the request into the raw listing form the extractor consumes
func (r PredictionRequest) ToRecord() RawListingRecord {
	attrs := make(map[string]string)
	text := map[string]string{
		"condition":         r.Condition,
		"brand":             r.Brand,
		"processor":         r.Processor,
		"gpu":               r.GPU,
		"material":          r.Material,
		"furniture_type":    r.FurnitureType,
		"furniture_subtype": r.FurnitureSubtype,
	}
	for k, v := range text {
		if v != "" {
			attrs[k] = v
		}
	}
	numbers := map[string]*float64{
		"ram":              r.RAM,
		"storage":          r.Storage,
		"camera":           r.Camera,
		"battery":          r.Battery,
		"screen_size":      r.ScreenSize,
		"age_months":       r.AgeMonths,
		"generation":       r.Generation,
		"seating_capacity": r.SeatingCapacity,
	}
	for k, v := range numbers {
		if v != nil {
			attrs[k] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	flags := map[string]*bool{
		"has_5g":         r.Has5G,
		"has_pta":        r.HasPTA,
		"has_amoled":     r.HasAMOLED,
		"has_warranty":   r.HasWarranty,
		"has_box":        r.HasBox,
		"has_ssd":        r.HasSSD,
		"is_gaming":      r.IsGaming,
		"is_touchscreen": r.IsTouchscreen,
		"is_imported":    r.IsImported,
		"is_handmade":    r.IsHandmade,
		"has_storage":    r.HasStorage,
		"is_modern":      r.IsModern,
		"is_antique":     r.IsAntique,
	}
	for k, v := range flags {
		if v != nil {
			attrs[k] = strconv.FormatBool(*v)
		}
	}

	return RawListingRecord{
		Category:    r.Category,
		Title:       r.Title,
		Description: r.Description,
		Attributes:  attrs,
		Source:      "request",
	}
}

// ExtractedFeatures is the feature breakdown returned alongside a prediction
type ExtractedFeatures struct {
	Values     map[string]float64 `json:"values"`
	Imputed    []string           `json:"imputed,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}

// PredictionResult is created per request and never persisted
type PredictionResult struct {
	PredictedPrice    float64            `json:"predicted_price"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ConfidenceLower   float64            `json:"confidence_lower"`
	ConfidenceUpper   float64            `json:"confidence_upper"`
	PriceRangeMin     float64            `json:"price_range_min"`
	PriceRangeMax     float64            `json:"price_range_max"`
	Recommendation    string             `json:"recommendation"`
	ExtractedFeatures ExtractedFeatures  `json:"extracted_features"`
	MemberPredictions map[string]float64 `json:"member_predictions,omitempty"`
	ModelVersion      string             `json:"model_version,omitempty"`
}
