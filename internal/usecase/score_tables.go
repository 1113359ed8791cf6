package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pricewise/backend/internal/domain"
)

// Categorical fields scored through ScoreTables
const (
	FieldBrand            = "brand"
	FieldProcessor        = "processor"
	FieldGPU              = "gpu"
	FieldMaterial         = "material"
	FieldFurnitureType    = "furniture_type"
	FieldFurnitureSubtype = "furniture_subtype"
	FieldCondition        = "condition"
)

// scoreTable maps canonical values to scores. Aliases resolve alternate
// spellings and product lines to a canonical value.
type scoreTable struct {
	scores   map[string]float64
	aliases  map[string]string
	fallback float64
	pattern  *regexp.Regexp
	words    []string // single-word aliases, sorted, for typo matching
}

func newScoreTable(fallback float64, scores map[string]float64, aliases map[string]string) *scoreTable {
	t := &scoreTable{
		scores:   scores,
		aliases:  make(map[string]string, len(scores)+len(aliases)),
		fallback: fallback,
	}
	for canonical := range scores {
		t.aliases[canonical] = canonical
	}
	for alias, canonical := range aliases {
		if _, ok := scores[canonical]; !ok {
			panic(fmt.Sprintf("alias %q points at unknown value %q", alias, canonical))
		}
		t.aliases[alias] = canonical
	}

	keys := make([]string, 0, len(t.aliases))
	for k := range t.aliases {
		keys = append(keys, k)
	}
	// longest first so "solid wood" wins over "wood" at the same position
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
		if len(k) >= minFuzzyLen && !strings.Contains(k, " ") {
			t.words = append(t.words, k)
		}
	}
	sort.Strings(t.words)
	t.pattern = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	return t
}

func (t *scoreTable) match(text string) (string, bool) {
	m := t.pattern.FindStringSubmatch(normalize(text))
	if m == nil {
		return "", false
	}
	return t.aliases[m[1]], true
}

type tableKey struct {
	category domain.Category
	field    string
}

// ScoreTables holds the immutable categorical lookup tables. Build it once with
// NewScoreTables and share it; nothing mutates it afterwards.
type ScoreTables struct {
	tables map[tableKey]*scoreTable
}

// NewScoreTables builds the tier tables for every category
func NewScoreTables() *ScoreTables {
	condition := newScoreTable(0.65, map[string]float64{
		"new":       1.0,
		"like new":  0.9,
		"open box":  0.9,
		"excellent": 0.85,
		"good":      0.75,
		"used":      0.65,
		"fair":      0.55,
		"poor":      0.35,
		"for parts": 0.15,
	}, map[string]string{
		"brand new":      "new",
		"sealed":         "new",
		"box pack":       "new",
		"mint":           "like new",
		"10/10":          "like new",
		"very good":      "excellent",
		"refurbished":    "good",
		"average":        "fair",
		"damaged":        "poor",
		"broken":         "poor",
		"not working":    "for parts",
		"parts only":     "for parts",
		"for parts only": "for parts",
	})

	s := &ScoreTables{tables: map[tableKey]*scoreTable{
		{domain.CategoryMobile, FieldBrand}: newScoreTable(2, map[string]float64{
			"apple": 5, "samsung": 4, "google": 4, "oneplus": 4,
			"xiaomi": 3, "oppo": 3, "vivo": 3, "motorola": 3, "huawei": 3,
			"realme": 2, "infinix": 2, "tecno": 2, "nokia": 2,
			"itel": 1, "qmobile": 1,
		}, map[string]string{
			"iphone":   "apple",
			"galaxy":   "samsung",
			"pixel":    "google",
			"one plus": "oneplus",
			"redmi":    "xiaomi",
			"poco":     "xiaomi",
			"mi":       "xiaomi",
			"moto":     "motorola",
			"honor":    "huawei",
		}),

		{domain.CategoryLaptop, FieldBrand}: newScoreTable(2, map[string]float64{
			"apple": 5, "razer": 5,
			"dell": 4, "lenovo": 4, "msi": 4, "microsoft": 4,
			"hp": 3, "asus": 3,
			"acer": 2, "toshiba": 2,
		}, map[string]string{
			"macbook":   "apple",
			"alienware": "dell",
			"xps":       "dell",
			"latitude":  "dell",
			"inspiron":  "dell",
			"thinkpad":  "lenovo",
			"ideapad":   "lenovo",
			"legion":    "lenovo",
			"surface":   "microsoft",
			"elitebook": "hp",
			"probook":   "hp",
			"pavilion":  "hp",
			"omen":      "hp",
			"zenbook":   "asus",
			"vivobook":  "asus",
			"rog":       "asus",
			"aspire":    "acer",
			"predator":  "acer",
			"nitro":     "acer",
		}),

		{domain.CategoryLaptop, FieldProcessor}: newScoreTable(1, map[string]float64{
			"i3": 2, "i5": 3, "i7": 4, "i9": 5,
			"ryzen 3": 2, "ryzen 5": 3, "ryzen 7": 4, "ryzen 9": 5,
			"m1": 4, "m1 pro": 5, "m1 max": 5, "m2": 5, "m3": 5,
			"celeron": 1, "pentium": 1,
		}, map[string]string{
			"core i3": "i3", "core i5": "i5", "core i7": "i7", "core i9": "i9",
			"ryzen3": "ryzen 3", "ryzen5": "ryzen 5", "ryzen7": "ryzen 7", "ryzen9": "ryzen 9",
			"apple m1": "m1",
			"apple m2": "m2", "apple m3": "m3",
			"atom": "celeron",
		}),

		{domain.CategoryLaptop, FieldGPU}: newScoreTable(0, map[string]float64{
			"rtx 40": 5, "rtx 30": 4, "rtx 20": 3,
			"radeon rx": 3, "gtx": 2, "mx": 1, "iris": 1, "integrated": 0,
		}, gpuAliases()),

		{domain.CategoryFurniture, FieldMaterial}: newScoreTable(2, map[string]float64{
			"sheesham": 5, "teak": 5, "oak": 5, "walnut": 5, "rosewood": 5,
			"solid wood": 4, "leather": 4,
			"wood": 3, "metal": 3, "glass": 3, "velvet": 3, "rattan": 3,
			"mdf": 2, "fabric": 2, "bamboo": 2,
			"particle board": 1, "plastic": 1,
		}, map[string]string{
			"shisham":   "sheesham",
			"wooden":    "wood",
			"iron":      "metal",
			"steel":     "metal",
			"chipboard": "particle board",
			"suede":     "velvet",
			"cane":      "rattan",
		}),

		{domain.CategoryFurniture, FieldFurnitureType}: newScoreTable(2, map[string]float64{
			"sofa": 4, "bed": 4, "wardrobe": 4, "dining table": 4,
			"table": 3, "desk": 3, "cabinet": 3, "dresser": 3, "tv unit": 3,
			"chair": 2, "bookshelf": 2, "ottoman": 2,
			"stool": 1,
		}, map[string]string{
			"couch":      "sofa",
			"settee":     "sofa",
			"almirah":    "wardrobe",
			"cupboard":   "wardrobe",
			"dining set": "dining table",
			"bookcase":   "bookshelf",
			"shelf":      "bookshelf",
			"console":    "tv unit",
			"tv stand":   "tv unit",
		}),

		{domain.CategoryFurniture, FieldFurnitureSubtype}: newScoreTable(2, map[string]float64{
			"sectional": 5, "king": 5,
			"recliner": 4, "l-shaped": 4, "queen": 4,
			"double": 3, "office chair": 3, "rocking": 3, "bunk": 3, "sofa cum bed": 3,
			"single": 2, "coffee table": 2,
			"side table": 1, "bean bag": 1,
		}, map[string]string{
			"l shaped":     "l-shaped",
			"corner":       "sectional",
			"king size":    "king",
			"queen size":   "queen",
			"sofa bed":     "sofa cum bed",
			"center table": "coffee table",
		}),
	}}

	for _, c := range domain.AllCategories() {
		s.tables[tableKey{c, FieldCondition}] = condition
	}
	return s
}

func gpuAliases() map[string]string {
	aliases := map[string]string{
		"geforce rtx 40": "rtx 40",
		"geforce rtx 30": "rtx 30",
		"geforce rtx 20": "rtx 20",
		"geforce gtx":    "gtx",
		"radeon":         "radeon rx",
		"iris xe":        "iris",
		"uhd":            "integrated",
		"intel hd":       "integrated",
		"shared":         "integrated",
	}
	series := map[string][]string{
		"rtx 40": {"4050", "4060", "4070", "4080", "4090"},
		"rtx 30": {"3050", "3060", "3070", "3080", "3090"},
		"rtx 20": {"2050", "2060", "2070", "2080"},
		"mx":     {"130", "150", "230", "250", "330", "350", "450", "550"},
	}
	for family, models := range series {
		prefix := strings.Fields(family)[0]
		for _, m := range models {
			aliases[prefix+" "+m] = family
			aliases[prefix+m] = family
		}
	}
	for _, m := range []string{"rx 5500", "rx 5600", "rx 6500", "rx 6600", "rx 6700", "rx 6800", "rx 7600"} {
		aliases[m] = "radeon rx"
	}
	return aliases
}

// Score returns the tier score for value, or the table fallback when the value
// is empty, unknown, or the table does not exist.
func (s *ScoreTables) Score(category domain.Category, field, value string) float64 {
	t, ok := s.tables[tableKey{category, field}]
	if !ok {
		return 0
	}
	if canonical, ok := s.Canonical(category, field, value); ok {
		return t.scores[canonical]
	}
	return t.fallback
}

// Canonical resolves value to its canonical table entry. Exact names and aliases
// are tried first, then the longest alias found inside the value, then a
// single-typo match against one-word aliases.
func (s *ScoreTables) Canonical(category domain.Category, field, value string) (string, bool) {
	t, ok := s.tables[tableKey{category, field}]
	if !ok {
		return "", false
	}
	v := normalize(value)
	if v == "" {
		return "", false
	}
	if canonical, ok := t.aliases[v]; ok {
		return canonical, true
	}
	if canonical, ok := t.match(v); ok {
		return canonical, true
	}
	return t.fuzzy(v)
}

// Match finds a known value mentioned anywhere in free text
func (s *ScoreTables) Match(category domain.Category, field, text string) (string, bool) {
	t, ok := s.tables[tableKey{category, field}]
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return t.match(text)
}

// Fallback returns the score used for unknown values of a field
func (s *ScoreTables) Fallback(category domain.Category, field string) float64 {
	if t, ok := s.tables[tableKey{category, field}]; ok {
		return t.fallback
	}
	return 0
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
