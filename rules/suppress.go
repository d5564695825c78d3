package rules

import (
	"fmt"
	"strings"

	"github.com/feedsieve/feedsieve/timeline"
)

// SuppressionReasons evaluates a user record against the config and returns
// zero or more human-readable reasons to hide the user's content. An empty
// result means "do not suppress".
//
// Mutuals and accounts the viewer follows are exempt unconditionally, before
// any other evaluation. Whitelisting is an independent short-circuit with the
// same effect.
func SuppressionReasons(u *timeline.UserRecord, cfg *Config) []string {
	if u.Mutual() || u.WeFollow {
		return nil
	}
	if cfg.Whitelisted(u.Handle) {
		return nil
	}

	var reasons []string

	haystack := strings.ToLower(u.Handle + " " + u.Name + " " + u.Description)
	for _, kw := range cfg.BannedKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			reasons = append(reasons, fmt.Sprintf("matched banned keyword: %q", kw))
		}
	}

	// boundary counts: following exactly ratio*followers is a match
	if u.Followers > 0 && u.Following >= cfg.RatioThreshold*u.Followers {
		ratio := float64(u.Following) / float64(u.Followers)
		reasons = append(reasons, fmt.Sprintf("follows %.1fx more accounts than followers (limit %dx)", ratio, cfg.RatioThreshold))
	}

	// boundary does not count: exactly the floor is fine
	if u.Followers < cfg.FollowerFloor {
		reasons = append(reasons, fmt.Sprintf("has fewer than %d followers", cfg.FollowerFloor))
	}

	return reasons
}

// MatchedBannedKeywords counts how many banned keywords appear in the
// record's handle, name, or description. Feeds the risk score's bio-toxicity
// component.
func MatchedBannedKeywords(u *timeline.UserRecord, cfg *Config) int {
	haystack := strings.ToLower(u.Handle + " " + u.Name + " " + u.Description)
	n := 0
	for _, kw := range cfg.BannedKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}
