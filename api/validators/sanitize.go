package validators

import "strings"

// SanitizeString trims surrounding whitespace, collapses internal runs of
// whitespace to single spaces and truncates to maxLen runes. Applied to
// user-supplied display names before they reach the database.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			return string(runes[:maxLen])
		}
	}
	return cleaned
}
