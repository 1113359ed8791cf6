package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern returns every candidate value found in text, in order of appearance
type numberPattern func(text string) []float64

func capture(expr string, group int) numberPattern {
	return captureScaled(expr, group, 1)
}

func captureScaled(expr string, group int, multiplier float64) numberPattern {
	re := regexp.MustCompile(`(?i)` + expr)
	return func(text string) []float64 {
		var out []float64
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if f, err := strconv.ParseFloat(m[group], 64); err == nil {
				out = append(out, f*multiplier)
			}
		}
		return out
	}
}

// captureUnless skips matches where the skip group matched, standing in for a
// negative lookahead.
func captureUnless(expr string, group, skip int) numberPattern {
	re := regexp.MustCompile(`(?i)` + expr)
	return func(text string) []float64 {
		var out []float64
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if m[skip] != "" {
				continue
			}
			if f, err := strconv.ParseFloat(m[group], 64); err == nil {
				out = append(out, f)
			}
		}
		return out
	}
}

var capacityPair = regexp.MustCompile(`(?i)\b(\d+)\s*gb\s*[,+&]?\s*(\d+)\s*(gb|tb)\b(\s*(?:of\s*)?(?:ram|memory|ddr\d?|lpddr\d?x?)\b)?`)

// pairedCapacity reads unlabelled "8GB 128GB" pairs, where the smaller figure
// is RAM and the larger one storage. Pairs whose second figure is labelled as
// memory are left to the labelled patterns.
func pairedCapacity(larger bool) numberPattern {
	return func(text string) []float64 {
		var out []float64
		for _, m := range capacityPair.FindAllStringSubmatch(text, -1) {
			if m[4] != "" {
				continue
			}
			a, errA := strconv.ParseFloat(m[1], 64)
			b, errB := strconv.ParseFloat(m[2], 64)
			if errA != nil || errB != nil {
				continue
			}
			if strings.EqualFold(m[3], "tb") {
				b *= 1024
			}
			lo, hi := math.Min(a, b), math.Max(a, b)
			if larger {
				out = append(out, hi)
			} else {
				out = append(out, lo)
			}
		}
		return out
	}
}

var intelModel = regexp.MustCompile(`(?i)\bi[3579]\s*-\s*(\d{3,5})[a-z]{0,2}\d?\b`)

// intelGeneration reads the generation from an Intel model number:
// i7-8550U is 8th gen, i7-1165G7 is 11th, i7-12700H is 12th.
func intelGeneration(text string) []float64 {
	var out []float64
	for _, m := range intelModel.FindAllStringSubmatch(text, -1) {
		digits := m[1]
		var gen string
		switch {
		case len(digits) == 5:
			gen = digits[:2]
		case len(digits) == 4 && digits[0] == '1':
			gen = digits[:2]
		case len(digits) == 4:
			gen = digits[:1]
		default:
			gen = "1"
		}
		if f, err := strconv.ParseFloat(gen, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

var (
	ramPatterns = []numberPattern{
		capture(`(\d+(?:\.\d+)?)\s*gb\s*(?:of\s*)?(?:ram|memory|ddr\d?|lpddr\d?x?)\b`, 1),
		capture(`\b(?:ram|memory)\s*[:\-]?\s*(\d+(?:\.\d+)?)\s*gb\b`, 1),
		capture(`\b(\d+)\s*/\s*\d+\s*(?:gb|tb)\b`, 1),
		pairedCapacity(false),
	}

	storagePatterns = []numberPattern{
		capture(`\b\d+\s*/\s*(\d+)\s*gb\b`, 1),
		captureScaled(`\b\d+\s*/\s*(\d+)\s*tb\b`, 1, 1024),
		captureScaled(`(\d+(?:\.\d+)?)\s*tb\b`, 1, 1024),
		capture(`(\d+)\s*gb\s*(?:ssd|hdd|nvme|emmc|rom|storage|internal)\b`, 1),
		pairedCapacity(true),
		captureUnless(`(\d+)\s*gb\b(\s*(?:of\s*)?(?:ram|memory|ddr\d?|lpddr\d?x?)\b)?`, 1, 2),
	}

	screenPatterns = []numberPattern{
		capture(`(\d{1,2}(?:\.\d{1,2})?)\s*-?\s*(?:inch(?:es)?\b|")`, 1),
		// a bare "in" only counts after a decimal size, so "2-in-1" is not a screen
		capture(`(\d{1,2}\.\d{1,2})\s*-?\s*in\b`, 1),
		capture(`\bscreen\s*(?:size)?\s*[:\-]?\s*(\d{1,2}(?:\.\d{1,2})?)\b`, 1),
	}

	generationPatterns = []numberPattern{
		capture(`\bgen(?:eration)?\s*[:\-]?\s*(\d{1,2})\b`, 1),
		capture(`\b(\d{1,2})(?:st|nd|rd|th)\s*gen(?:eration)?\b`, 1),
		intelGeneration,
	}

	cameraPatterns = []numberPattern{
		capture(`(\d{1,3}(?:\.\d+)?)\s*mp\b`, 1),
		capture(`(\d{1,3}(?:\.\d+)?)\s*megapixels?\b`, 1),
	}

	batteryPatterns = []numberPattern{
		capture(`(\d{3,5})\s*mah\b`, 1),
	}

	seatingPatterns = []numberPattern{
		capture(`\b(\d{1,2})\s*-?\s*seat(?:er|s)?\b`, 1),
		capture(`\bseats?\s*[:\-]?\s*(\d{1,2})\b`, 1),
	}

	agePatterns = []numberPattern{
		capture(`\b(\d{1,3})\s*months?\s*(?:old|used)\b`, 1),
		captureScaled(`\b(\d{1,2}(?:\.\d)?)\s*(?:years?|yrs?)\s*(?:old|used)\b`, 1, 12),
		capture(`\bused\s*(?:for\s*)?(\d{1,3})\s*months?\b`, 1),
		captureScaled(`\bused\s*(?:for\s*)?(\d{1,2}(?:\.\d)?)\s*(?:years?|yrs?)\b`, 1, 12),
	}
)

// keyword detects a boolean flag in free text. A negated mention wins over a
// plain one, so "non pta" reads as false.
type keyword struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}

func newKeyword(positive, negative string) keyword {
	k := keyword{positive: regexp.MustCompile(`(?i)` + positive)}
	if negative != "" {
		k.negative = regexp.MustCompile(`(?i)` + negative)
	}
	return k
}

func (k keyword) detect(text string) (found, value bool) {
	if k.negative != nil && k.negative.MatchString(text) {
		return true, false
	}
	if k.positive.MatchString(text) {
		return true, true
	}
	return false, false
}

var (
	fiveGKeyword    = newKeyword(`\b5g\b`, `\b(?:no|non|without)[\s-]*5g\b`)
	ptaKeyword      = newKeyword(`\bpta\b`, `\b(?:non|not|without|no)[\s-]*pta\b`)
	amoledKeyword   = newKeyword(`\b(?:super\s*)?(?:amoled|oled)\b`, "")
	warrantyKeyword = newKeyword(`\bwarranty\b`, `\b(?:no|without|out\s+of|expired)\s+warranty\b`)
	boxKeyword      = newKeyword(`\b(?:box|boxed|box\s*pack)\b`, `\b(?:no|without|missing)\s+box\b`)
	ssdKeyword      = newKeyword(`\b(?:ssd|nvme|m\.2)\b`, "")
	gamingKeyword   = newKeyword(`\b(?:gaming|gamer|rtx|gtx|rog|tuf|legion|predator|omen|alienware|nitro)\b`, "")
	touchKeyword    = newKeyword(`\b(?:touch\s*screen|touch\s*display|touch|x360|2[\s-]in[\s-]1)\b`, `\b(?:non|no)[\s-]*touch\b`)
	importedKeyword = newKeyword(`\b(?:imported|import)\b`, "")
	handmadeKeyword = newKeyword(`\b(?:handmade|hand\s*made|handcrafted|hand[\s-]crafted)\b`, "")
	storageKeyword  = newKeyword(`\b(?:storage|drawers?|shelves|compartments?)\b`, `\b(?:no|without)\s+storage\b`)
	modernKeyword   = newKeyword(`\b(?:modern|contemporary|minimalist)\b`, "")
	antiqueKeyword  = newKeyword(`\b(?:antique|vintage|victorian|heritage)\b`, "")
)
