package main

import (
	"regexp"
	"strings"
)

var urlRegex = regexp.MustCompile(`https?://\S+`)

// isRelevantMessage decides whether a message is worth sending to the
// classifier. Pure: no side effects, never fails.
func isRelevantMessage(msg IncomingMessage, minLength int) bool {
	if msg.AuthorIsBot {
		return false
	}
	if len(msg.Content) < minLength {
		return false
	}
	// Links-only messages carry nothing to classify.
	stripped := urlRegex.ReplaceAllString(msg.Content, "")
	if strings.TrimSpace(stripped) == "" {
		return false
	}
	return true
}
