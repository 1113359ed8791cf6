package usecase

import (
	"regexp"
	"strings"
)

// Contact details and links carry digits that the numeric patterns would
// otherwise misread as specs.
var (
	urlPattern   = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+\.\w+`)
	phonePattern = regexp.MustCompile(`\+?\d[\d-]{8,}\d`)

	listingSpacePattern = regexp.MustCompile(`\s+`)
)

// listingNoiseWords are seller boilerplate that never describe the item
var listingNoiseWords = map[string]bool{
	"urgent":     true,
	"urgently":   true,
	"whatsapp":   true,
	"call":       true,
	"contact":    true,
	"negotiable": true,
	"dm":         true,
	"inbox":      true,
}

// cleanListingText strips links, contact details and seller boilerplate from
// free text and normalizes whitespace. Case is preserved.
func cleanListingText(s string) string {
	if s == "" {
		return ""
	}
	s = urlPattern.ReplaceAllString(s, " ")
	s = emailPattern.ReplaceAllString(s, " ")
	s = phonePattern.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, word := range words {
		if listingNoiseWords[strings.ToLower(strings.Trim(word, ",.!?;:-'\"()"))] {
			continue
		}
		kept = append(kept, word)
	}
	return listingSpacePattern.ReplaceAllString(strings.Join(kept, " "), " ")
}
