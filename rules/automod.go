package rules

import "strings"

// AutoModerationReason returns the first configured moderation keyword (in
// list order) found in the handle or display text, or "" when none match.
// This list is independent of the suppression keywords and of the risk score.
func AutoModerationReason(handle, displayText string, keywords []string) string {
	h := strings.ToLower(handle)
	d := strings.ToLower(displayText)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(h, kw) || strings.Contains(d, kw) {
			return kw
		}
	}
	return ""
}
