package usecase

import (
	"fmt"
	"math"

	"github.com/pricewise/backend/internal/domain"
)

// FieldRange is the plausible range of a numeric field. Values outside it are
// nulled, or replaced with Default when HasDefault is set.
type FieldRange struct {
	Min        float64
	Max        float64
	Default    float64
	HasDefault bool
}

// Contains reports whether v lies inside the closed range
func (r FieldRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// CategorySchema is the per-category variant shared by extraction, engineering
// and serving. Feature order is fixed by FeatureNames.
type CategorySchema interface {
	Category() domain.Category
	FeatureNames() []string
	RequiredField() string
	Range(field string) (FieldRange, bool)

	extract(r *fieldReader, v *domain.FeatureVector)
	engineer(v *domain.FeatureVector)
}

var ageRange = FieldRange{Min: 0, Max: 240}

// SchemaFor returns the schema variant for a category
func SchemaFor(category domain.Category) (CategorySchema, error) {
	switch category {
	case domain.CategoryMobile:
		return mobileSchema{}, nil
	case domain.CategoryLaptop:
		return laptopSchema{}, nil
	case domain.CategoryFurniture:
		return furnitureSchema{}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
}

type mobileSchema struct{}

var mobileRanges = map[string]FieldRange{
	"ram":         {Min: 2, Max: 128},
	"storage":     {Min: 128, Max: 8192},
	"camera":      {Min: 2, Max: 200},
	"battery":     {Min: 1000, Max: 10000},
	"screen_size": {Min: 4, Max: 8},
	"age_months":  ageRange,
}

func (mobileSchema) Category() domain.Category { return domain.CategoryMobile }

func (mobileSchema) FeatureNames() []string {
	return []string{
		"brand_score", "ram", "storage", "camera", "battery", "screen_size",
		"condition_score", "age_months",
		"has_5g", "has_pta", "has_amoled", "has_warranty", "has_box",
		"performance", "ram_squared", "depreciation", "brand_ram",
	}
}

func (mobileSchema) RequiredField() string { return FieldBrand }

func (mobileSchema) Range(field string) (FieldRange, bool) {
	r, ok := mobileRanges[field]
	return r, ok
}

func (s mobileSchema) extract(r *fieldReader, v *domain.FeatureVector) {
	v.Set("brand_score", r.categorical(FieldBrand))
	v.Set("ram", r.number("ram", mobileRanges["ram"], ramPatterns))
	v.Set("storage", r.number("storage", mobileRanges["storage"], storagePatterns))
	v.Set("camera", r.number("camera", mobileRanges["camera"], cameraPatterns))
	v.Set("battery", r.number("battery", mobileRanges["battery"], batteryPatterns))
	v.Set("screen_size", r.number("screen_size", mobileRanges["screen_size"], screenPatterns))
	v.Set("condition_score", r.categorical(FieldCondition))
	v.Set("age_months", r.number("age_months", ageRange, agePatterns))

	v.SetBool("has_5g", r.flag("has_5g", fiveGKeyword))
	v.SetBool("has_pta", r.flag("has_pta", ptaKeyword))
	v.SetBool("has_amoled", r.flag("has_amoled", amoledKeyword))
	v.SetBool("has_warranty", r.flag("has_warranty", warrantyKeyword))
	v.SetBool("has_box", r.flag("has_box", boxKeyword))
}

func (mobileSchema) engineer(v *domain.FeatureVector) {
	engineerDevice(v)
}

type laptopSchema struct{}

var laptopRanges = map[string]FieldRange{
	"ram":         {Min: 2, Max: 128},
	"storage":     {Min: 128, Max: 8192},
	"screen_size": {Min: 11, Max: 18, Default: 15.6, HasDefault: true},
	"generation":  {Min: 1, Max: 14, Default: 0, HasDefault: true},
	"gpu_tier":    {Min: 0, Max: 5, Default: 0, HasDefault: true},
	"age_months":  ageRange,
}

func (laptopSchema) Category() domain.Category { return domain.CategoryLaptop }

func (laptopSchema) FeatureNames() []string {
	return []string{
		"brand_score", "processor_score", "generation", "gpu_tier", "ram", "storage",
		"screen_size", "condition_score", "age_months",
		"has_ssd", "is_gaming", "is_touchscreen",
		"performance", "ram_squared", "depreciation", "brand_ram", "processor_power",
	}
}

func (laptopSchema) RequiredField() string { return FieldProcessor }

func (laptopSchema) Range(field string) (FieldRange, bool) {
	r, ok := laptopRanges[field]
	return r, ok
}

func (laptopSchema) extract(r *fieldReader, v *domain.FeatureVector) {
	v.Set("brand_score", r.categorical(FieldBrand))
	v.Set("processor_score", r.categorical(FieldProcessor))
	v.Set("generation", r.number("generation", laptopRanges["generation"], generationPatterns))
	v.Set("gpu_tier", r.tier(FieldGPU, "gpu_tier", laptopRanges["gpu_tier"]))
	v.Set("ram", r.number("ram", laptopRanges["ram"], ramPatterns))
	v.Set("storage", r.number("storage", laptopRanges["storage"], storagePatterns))
	v.Set("screen_size", r.number("screen_size", laptopRanges["screen_size"], screenPatterns))
	v.Set("condition_score", r.categorical(FieldCondition))
	v.Set("age_months", r.number("age_months", ageRange, agePatterns))

	v.SetBool("has_ssd", r.flag("has_ssd", ssdKeyword))
	v.SetBool("is_gaming", r.flag("is_gaming", gamingKeyword))
	v.SetBool("is_touchscreen", r.flag("is_touchscreen", touchKeyword))
}

func (laptopSchema) engineer(v *domain.FeatureVector) {
	engineerDevice(v)
	v.Set("processor_power", value(v, "processor_score")*(1+value(v, "generation")/14))
}

type furnitureSchema struct{}

var furnitureRanges = map[string]FieldRange{
	"seating_capacity": {Min: 1, Max: 12},
	"age_months":       ageRange,
}

func (furnitureSchema) Category() domain.Category { return domain.CategoryFurniture }

func (furnitureSchema) FeatureNames() []string {
	return []string{
		"material_score", "type_score", "subtype_score", "seating_capacity",
		"condition_score", "age_months",
		"is_imported", "is_handmade", "has_storage", "is_modern", "is_antique",
		"depreciation", "material_condition", "capacity_material",
	}
}

func (furnitureSchema) RequiredField() string { return FieldFurnitureType }

func (furnitureSchema) Range(field string) (FieldRange, bool) {
	r, ok := furnitureRanges[field]
	return r, ok
}

func (furnitureSchema) extract(r *fieldReader, v *domain.FeatureVector) {
	v.Set("material_score", r.categorical(FieldMaterial))
	v.Set("type_score", r.categorical(FieldFurnitureType))
	v.Set("subtype_score", r.categorical(FieldFurnitureSubtype))
	v.Set("seating_capacity", r.number("seating_capacity", furnitureRanges["seating_capacity"], seatingPatterns))
	v.Set("condition_score", r.categorical(FieldCondition))
	v.Set("age_months", r.number("age_months", ageRange, agePatterns))

	v.SetBool("is_imported", r.flag("is_imported", importedKeyword))
	v.SetBool("is_handmade", r.flag("is_handmade", handmadeKeyword))
	v.SetBool("has_storage", r.flag("has_storage", storageKeyword))
	v.SetBool("is_modern", r.flag("is_modern", modernKeyword))
	v.SetBool("is_antique", r.flag("is_antique", antiqueKeyword))
}

func (furnitureSchema) engineer(v *domain.FeatureVector) {
	material := value(v, "material_score")
	v.Set("depreciation", depreciation(value(v, "age_months")))
	v.Set("material_condition", material*value(v, "condition_score"))
	v.Set("capacity_material", value(v, "seating_capacity")*material)
}

// engineerDevice fills the composite features shared by phones and laptops.
// A missing input yields a missing composite, which imputation fills later.
func engineerDevice(v *domain.FeatureVector) {
	ram := value(v, "ram")
	storage := value(v, "storage")
	v.Set("performance", math.Pow(ram, 1.5)*math.Sqrt(storage))
	v.Set("ram_squared", ram*ram)
	v.Set("depreciation", depreciation(value(v, "age_months")))
	v.Set("brand_ram", value(v, "brand_score")*ram)
}

func depreciation(ageMonths float64) float64 {
	return math.Exp(-ageMonths / 24)
}

// value returns the raw slot, NaN included
func value(v *domain.FeatureVector, name string) float64 {
	if i := v.Index(name); i >= 0 {
		return v.Values[i]
	}
	return math.NaN()
}
