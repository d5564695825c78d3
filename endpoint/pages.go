package endpoint

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ListingPage identifies a user-listing page type supported by bulk
// collection.
type ListingPage string

const (
	PageReposts ListingPage = "reposts"
	PageQuotes  ListingPage = "quotes"
)

// ClassifyListing reports which bulk-collection page a URL belongs to, along
// with the status id the listing is about. Returns ok=false for anything
// else, including listing URLs whose variables cannot be parsed.
func ClassifyListing(rawURL string) (ListingPage, string, bool) {
	var page ListingPage
	switch {
	case strings.Contains(rawURL, "/Retweeters"):
		page = PageReposts
	case strings.Contains(rawURL, "/QuotesTimeline"):
		page = PageQuotes
	default:
		return "", "", false
	}
	id := listingStatusID(rawURL)
	if id == "" {
		return "", "", false
	}
	return page, id, true
}

// listingStatusID digs the target tweet id out of the URL-encoded JSON
// "variables" parameter.
func listingStatusID(rawURL string) string {
	_, qs, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	params, err := url.ParseQuery(qs)
	if err != nil {
		return ""
	}
	var vars struct {
		TweetID string `json:"tweetId"`
	}
	if err := json.Unmarshal([]byte(params.Get("variables")), &vars); err != nil {
		return ""
	}
	return vars.TweetID
}
