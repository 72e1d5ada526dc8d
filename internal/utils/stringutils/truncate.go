package stringutils

import "strings"

// TruncateRunes truncates s to at most max runes, never splitting a rune.
// The provider rejects text bodies over its hard length limit, so outbound
// messages are cut rather than failed.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// NormalizeAddress strips a leading "+" and surrounding whitespace from a
// participant phone address so that session keys stay deterministic across
// webhook payload variants.
func NormalizeAddress(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), "+")
}
