package court

import (
	"regexp"
	"strings"
)

var documentNamePunct = regexp.MustCompile(`[(),."']+`)

// NormalizeCaseNumber canonicalizes an identifier for dedup comparisons.
// Portal case numbers are case-insensitive and callers paste them with
// stray whitespace.
func NormalizeCaseNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// SanitizeDocumentName turns a filed-document title into a storage-safe
// filename: punctuation stripped, spaces hyphenated, ".pdf" appended when
// missing.
func SanitizeDocumentName(name string) string {
	name = documentNamePunct.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "-")
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
