package timeline

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// authorStrategy locates the author/subject profile payload inside a
// tweet-shaped node. Strategies are probed in priority order and the first
// one yielding a non-empty payload wins.
type authorStrategy struct {
	name  string
	probe func(node map[string]any) map[string]any
}

var authorStrategies = []authorStrategy{
	// the common GraphQL shape
	{"core-user-results", func(node map[string]any) map[string]any {
		return childMap(node, "core", "user_results", "result")
	}},
	// tweets wrapped in a visibility-limited container
	{"visibility-wrapped", func(node map[string]any) map[string]any {
		return childMap(node, "tweet", "core", "user_results", "result")
	}},
	// older REST-style payloads inline the author directly
	{"legacy-inline", func(node map[string]any) map[string]any {
		if legacy := childMap(node, "user"); legacy != nil {
			return map[string]any{"rest_id": stringField(legacy, "id_str"), "legacy": legacy}
		}
		return nil
	}},
	// quote tweets: the quoted post's author
	{"quoted-author", func(node map[string]any) map[string]any {
		return childMap(node, "quoted_status_result", "result", "core", "user_results", "result")
	}},
	// reposts: the reposted post's author
	{"reposted-author", func(node map[string]any) map[string]any {
		return childMap(node, "legacy", "retweeted_status_result", "result", "core", "user_results", "result")
	}},
}

// NormalizeUser produces the canonical user record for a timeline entry, or
// nil when no known author nesting path yields a profile payload.
func NormalizeUser(e Entry) *UserRecord {
	if e.Node == nil {
		return nil
	}
	if e.Kind == UserEntry {
		return userFromResult(e.Node)
	}
	for _, strat := range authorStrategies {
		if res := strat.probe(e.Node); res != nil {
			if u := userFromResult(res); u != nil {
				return u
			}
		}
	}
	return nil
}

// userFromResult converts a GraphQL user-result object (rest_id + legacy
// profile, plus optional newer relationship/verification fields) into a
// UserRecord.
func userFromResult(res map[string]any) *UserRecord {
	legacy := childMap(res, "legacy")
	if legacy == nil || len(legacy) == 0 {
		return nil
	}

	u := &UserRecord{
		ID:          stringField(res, "rest_id"),
		Handle:      stringField(legacy, "screen_name"),
		Name:        stringField(legacy, "name"),
		Followers:   intField(legacy, "followers_count"),
		Following:   intField(legacy, "friends_count"),
		Description: stringField(legacy, "description"),
		PostCount:   intField(legacy, "statuses_count"),
		CreatedAt:   parseCreatedAt(stringField(legacy, "created_at")),
	}
	if u.ID == "" {
		u.ID = UnknownID
	}

	u.WeFollow, _ = boolField(legacy, "following")
	u.FollowedByThem, _ = boolField(legacy, "followed_by")
	// newer payloads move relationship flags out of legacy; when present,
	// that perspective wins
	if rel := childMap(res, "relationship_perspectives"); rel != nil {
		if v, ok := boolField(rel, "following"); ok {
			u.WeFollow = v
		}
		if v, ok := boolField(rel, "followed_by"); ok {
			u.FollowedByThem = v
		}
	}

	u.Verified, _ = boolField(legacy, "verified")
	if v, ok := boolField(res, "is_blue_verified"); ok && v {
		u.Verified = true
	}
	return u
}

// parseCreatedAt handles both the legacy ruby-style timestamp format and ISO
// forms. Unparseable or empty input yields nil.
func parseCreatedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &t
}
