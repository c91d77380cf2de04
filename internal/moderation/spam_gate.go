package moderation

import "strings"

var linkMarkers = []string{"http://", "https://", "www."}

// ClassifyLink reports whether a message must be rejected: the chat has its URL lock enabled
// and the text contains a link marker in any letter case.
func ClassifyLink(text string, locked bool) bool {
	if !locked || text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, marker := range linkMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
