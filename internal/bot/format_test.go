package bot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFormatReply(t *testing.T) {
	if got := FormatReply("short answer", SlackMessageLimit); got != "short answer" {
		t.Errorf("FormatReply(short) = %q, want unchanged", got)
	}

	exact := strings.Repeat("a", SlackMessageLimit)
	if got := FormatReply(exact, SlackMessageLimit); got != exact {
		t.Error("FormatReply(at limit) modified the text")
	}

	long := strings.Repeat("a", SlackMessageLimit+1)
	got := FormatReply(long, SlackMessageLimit)
	if len(got) != SlackMessageLimit {
		t.Errorf("len(FormatReply(long)) = %d, want %d", len(got), SlackMessageLimit)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("FormatReply(long) = %q..., missing truncation marker", got[:40])
	}
	if !strings.HasPrefix(got, "aaa") {
		t.Errorf("FormatReply(long) lost the leading content: %q", got[:10])
	}
}

func TestFormatReplyMultibyteBoundary(t *testing.T) {
	// An odd cut point lands mid-rune for two-byte characters; the cut
	// must back up instead of splitting one.
	const limit = 101
	text := strings.Repeat("é", 100)

	got := FormatReply(text, limit)
	if !utf8.ValidString(got) {
		t.Errorf("FormatReply() produced invalid UTF-8: %q", got)
	}
	if len(got) > limit {
		t.Errorf("len(FormatReply()) = %d, want <= %d", len(got), limit)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Error("truncated reply missing marker")
	}
}

func TestFormatReplyEmpty(t *testing.T) {
	if got := FormatReply("", SlackMessageLimit); got != "" {
		t.Errorf("FormatReply(empty) = %q, want empty", got)
	}
}
