// Package match extracts order references from free-form bank transfer
// descriptions. Banks routinely strip punctuation and fold case, so the
// canonical ORD-XXXXXXXX form, its dashless variant, and lowercase
// renditions are all recognized.
package match

import (
	"regexp"
	"strings"
)

var (
	dashedRe   = regexp.MustCompile(`(?i)ORD-[A-Z0-9]{8}`)
	dashlessRe = regexp.MustCompile(`(?i)ORD([A-Z0-9]{8})`)
	bookingRe  = regexp.MustCompile(`(?i)BOOKING\d+`)
)

// OrderCodes returns every order-shaped token in content, normalized to the
// uppercase ORD-XXXXXXXX form. Dashed tokens come before dashless ones and
// duplicates are dropped; a token that resolves to no order must not shadow
// the ones after it, so all candidates are surfaced.
func OrderCodes(content string) []string {
	if content == "" {
		return nil
	}
	var codes []string
	seen := make(map[string]struct{})
	add := func(code string) {
		if _, dup := seen[code]; dup {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	for _, tok := range dashedRe.FindAllString(content, -1) {
		add(strings.ToUpper(tok))
	}
	for _, m := range dashlessRe.FindAllStringSubmatch(content, -1) {
		add("ORD-" + strings.ToUpper(m[1]))
	}
	return codes
}

// BookingReference returns the first booking token in content, uppercased.
// Booking references belong to a legacy flow and are recorded, never applied.
func BookingReference(content string) (string, bool) {
	if content == "" {
		return "", false
	}
	if tok := bookingRe.FindString(content); tok != "" {
		return strings.ToUpper(tok), true
	}
	return "", false
}
