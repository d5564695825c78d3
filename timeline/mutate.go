package timeline

// Sentinel values the host client reads to decide an item is not renderable.
const (
	UnavailableType = "TweetUnavailable"
	FilteredReason  = "ContentFiltered"
	filteredNotice  = "This post was hidden by your content filter."
)

// Suppress destructively rewrites a content node so that, once re-serialized,
// the host client renders the item as unavailable: the rich payload is
// dropped wholesale and replaced with an unavailable type discriminator, a
// machine-readable reason, and a tombstone carrying a human-readable notice.
// The redundancy is deliberate; the client has been observed keying off any
// one of those fields. Irreversible, and applying it again yields the same
// terminal structure.
func Suppress(node map[string]any) {
	if node == nil {
		return
	}
	for k := range node {
		delete(node, k)
	}
	node["__typename"] = UnavailableType
	node["reason"] = FilteredReason
	node["tombstone"] = map[string]any{
		"__typename": "TextTombstone",
		"text":       filteredNotice,
	}
}
