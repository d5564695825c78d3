// Package rules holds the pure decision functions: suppression reasons,
// the composite risk score, and the auto-moderation keyword verdict. All of
// them take an explicit config snapshot; nothing here owns state.
package rules

import "strings"

// Config is a read-once-per-decision snapshot of the rule configuration.
type Config struct {
	FilterEnabled         bool
	AutoModerationEnabled bool

	// Ordered, matched case-insensitively as substrings of
	// handle+name+description.
	BannedKeywords []string
	// Lowercased handles exempt from keyword/ratio/floor suppression.
	WhitelistedHandles map[string]bool
	// Accounts below this follower count get a low-audience reason.
	FollowerFloor int64
	// An account following >= RatioThreshold * followers gets a ratio reason.
	RatioThreshold int64
	// Independent keyword list driving block/mute, not suppression.
	ModerationKeywords []string
}

// Whitelisted reports whether a handle is exempted, comparing
// case-insensitively.
func (c *Config) Whitelisted(handle string) bool {
	return c.WhitelistedHandles[strings.ToLower(handle)]
}

// ParseList splits a comma-separated settings value into trimmed, lowercased,
// non-empty items, preserving order.
func ParseList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseHandleSet is ParseList for whitelist-style exact-match sets.
func ParseHandleSet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, h := range ParseList(raw) {
		set[h] = true
	}
	return set
}
