package bot

import "unicode/utf8"

// SlackMessageLimit is the reply length cap applied before sending.
const SlackMessageLimit = 3000

// truncationMarker terminates truncated replies.
const truncationMarker = "\n\n... (response truncated)"

// FormatReply enforces the platform length limit. Text at or under the
// limit passes through unchanged; longer text is cut so the result,
// marker included, never exceeds the limit. The cut lands on a rune
// boundary so a multibyte character is never split.
func FormatReply(text string, limit int) string {
	if limit <= 0 {
		limit = SlackMessageLimit
	}
	if len(text) <= limit {
		return text
	}
	if limit <= len(truncationMarker) {
		return text[:runeBoundary(text, limit)]
	}
	return text[:runeBoundary(text, limit-len(truncationMarker))] + truncationMarker
}

// runeBoundary walks cut back to the start of the rune it falls inside.
func runeBoundary(s string, cut int) int {
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}
