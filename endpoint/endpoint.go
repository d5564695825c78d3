// Package endpoint classifies upstream API URLs and tracks the opaque
// GraphQL operation identifiers the web client embeds in its request paths.
package endpoint

import "strings"

// URL substrings for endpoints whose response bodies carry renderable content
// (timelines, threads, search, notifications). Everything else passes through
// the proxy untouched.
var contentBearingPatterns = []string{
	"/HomeTimeline",
	"/HomeLatestTimeline",
	"/TweetDetail",
	"/UserTweets",
	"/SearchTimeline",
	"/Retweeters",
	"/QuotesTimeline",
	"/search/adaptive.json",
	"/notifications/all.json",
	"/notifications/mentions.json",
}

// IsContentBearing reports whether the URL points at an endpoint worth
// transforming. Matching is substring-based: operation ids and query strings
// around the patterns change constantly, the endpoint names do not.
func IsContentBearing(url string) bool {
	for _, pat := range contentBearingPatterns {
		if strings.Contains(url, pat) {
			return true
		}
	}
	return false
}
