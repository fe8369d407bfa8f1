package matcher

import "strings"

// Normalize folds message text for comparison: "ё" is treated as "е" (both
// cases) and everything is lowercased. Pure, no trimming: message text is
// matched as-is.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "Ё", "Е")
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.ToLower(s)
}

// NormalizeKeyword prepares a keyword for storage and comparison. Same
// folding as Normalize plus surrounding whitespace removal, so " Ёж " and
// "еж" collide.
func NormalizeKeyword(s string) string {
	return Normalize(strings.TrimSpace(s))
}
