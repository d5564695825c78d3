package endpoint

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Logical names for upstream GraphQL operations the engine may need to
// originate itself. The opaque per-deployment operation id for each is only
// learnable by watching live traffic.
type Operation string

const (
	OpUserByHandle      Operation = "user-by-handle"
	OpRetweeters        Operation = "retweeters"
	OpQuotes            Operation = "quotes"
	OpFavoriters        Operation = "favoriters"
	OpFollowers         Operation = "followers"
	OpFollowersYouKnow  Operation = "followers-you-know"
)

// wire operation name -> logical name
var operationNames = map[string]Operation{
	"UserByScreenName": OpUserByHandle,
	"Retweeters":       OpRetweeters,
	"QuotesTimeline":   OpQuotes,
	"Favoriters":       OpFavoriters,
	"Followers":        OpFollowers,
	"FollowersYouKnow": OpFollowersYouKnow,
}

var graphqlPathPattern = regexp.MustCompile(`/graphql/([^/?#]+)/([A-Za-z0-9_]+)`)

// OperationInfo is one captured registry entry.
type OperationInfo struct {
	// Opaque operation id from the URL path. Deployment-specific and can go
	// stale at any time.
	ID string
	// Wire-level operation name, needed to rebuild a request URL.
	Name string
	// Raw "features"/"fieldToggles" query parameters observed alongside the
	// operation, replayed verbatim when originating a request.
	ExtraQuery string
}

// Registry maps logical operation names to captured operation info. Entries
// are write-once until explicitly invalidated (a fresher capture of the same
// deployment carries the same id anyway).
type Registry struct {
	ops *xsync.Map[Operation, OperationInfo]
}

func NewRegistry() *Registry {
	return &Registry{ops: xsync.NewMap[Operation, OperationInfo]()}
}

// Capture inspects an outbound URL and, if it is a recognized GraphQL
// operation, records its id and extra query parameters. Malformed URLs are
// ignored.
func (r *Registry) Capture(rawURL string) {
	m := graphqlPathPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return
	}
	op, ok := operationNames[m[2]]
	if !ok {
		return
	}
	info := OperationInfo{
		ID:         m[1],
		Name:       m[2],
		ExtraQuery: extraQuery(rawURL),
	}
	r.ops.LoadOrStore(op, info)
}

// Lookup returns the captured info for a logical operation, if any.
func (r *Registry) Lookup(op Operation) (OperationInfo, bool) {
	return r.ops.Load(op)
}

// Invalidate drops a single registry entry, typically after the upstream API
// rejected a request built from it. The next live capture repopulates it.
func (r *Registry) Invalidate(op Operation) {
	r.ops.Delete(op)
}

// extraQuery extracts the "features" and "fieldToggles" parameters from a raw
// URL, re-encoded on their own. Returns "" for URLs with no (or unparseable)
// query strings.
func extraQuery(rawURL string) string {
	_, qs, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	params, err := url.ParseQuery(qs)
	if err != nil {
		return ""
	}
	keep := url.Values{}
	for _, k := range []string{"features", "fieldToggles"} {
		if params.Has(k) {
			keep.Set(k, params.Get(k))
		}
	}
	return keep.Encode()
}
