// Package redact strips phone numbers from resume text before it leaves the
// process. Numbers are useless as NER training signal and are the one PII
// field the labeling prompt has no label for, so they are replaced with a
// stable placeholder up front.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Ukrainian mobile operator codes (first 3 digits after +380 or 0).
var ukrainianOperatorCodes = []string{
	// Kyivstar
	"067", "068", "096", "097", "098",
	// Vodafone
	"050", "066", "095", "099",
	// Lifecell
	"063", "073", "093",
	// Others
	"094", "092", "091", "089",
}

var (
	ukrainianPattern = regexp.MustCompile(
		`(?:\+?380|0)?[\s\-(]*(?:` + strings.Join(ukrainianOperatorCodes, "|") + `)[\s\-)]*[\d\s\-]{6,8}`)
	digitRunPattern = regexp.MustCompile(`\b\d{10,12}\b`)
	// Separator-tolerant numbers: at least 9 digits total among the
	// digits/separators run.
	separatedPattern = regexp.MustCompile(`[+(]?(?:[\d][\s\-().]*){9,15}`)
)

// Phones replaces phone numbers in text with a [name_PhoneNumber]
// placeholder. Three passes, most specific first: operator-code numbers,
// bare 10-12 digit runs, then separator-tolerant international formats.
func Phones(text, name string) string {
	placeholder := fmt.Sprintf("[%s_PhoneNumber]", name)
	text = ukrainianPattern.ReplaceAllString(text, placeholder)
	text = digitRunPattern.ReplaceAllString(text, placeholder)
	text = separatedPattern.ReplaceAllString(text, placeholder)
	return text
}
