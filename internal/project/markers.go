package project

import (
	"strings"

	"sessionctl/internal/session"
)

// Free-text classification of special turns. These checks feed the splitter
// only; chain integrity never depends on them.

const continuationPrefix = "This session is being continued from"

var rejectionMarkers = []string{
	"The user doesn't want to proceed",
	"The user rejected",
	"Request interrupted by user",
}

// IsContinuation reports whether t is a continuation-from-compaction marker,
// by explicit flag or by its text prefix.
func IsContinuation(t *session.Turn) bool {
	if t.IsCompactSummary {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(t.Text()), continuationPrefix)
}

// RejectionReason reports whether t's content is purely rejected or
// cancelled tool results, and returns the reason text to keep when such a
// turn becomes a chain root.
func RejectionReason(t *session.Turn) (string, bool) {
	if t.Type != session.KindUser || len(t.Message.Blocks) == 0 {
		return "", false
	}
	reason := ""
	for _, b := range t.Message.Blocks {
		if b.Type != session.BlockToolResult || !isRejection(b) {
			return "", false
		}
		if reason == "" {
			reason = strings.TrimSpace(b.Content)
		}
	}
	if reason == "" {
		reason = "Tool use was rejected."
	}
	return reason, true
}

func isRejection(b session.Block) bool {
	for _, marker := range rejectionMarkers {
		if strings.Contains(b.Content, marker) {
			return true
		}
	}
	return false
}
