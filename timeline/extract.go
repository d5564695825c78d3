package timeline

// EntryKind distinguishes tweet-shaped from user-shaped timeline items.
type EntryKind int

const (
	TweetEntry EntryKind = iota
	UserEntry
)

// Entry is one discrete content item found in a response body. Node is the
// shared in-memory "result" object; mutating it mutates the structure that
// gets re-serialized.
type Entry struct {
	Kind EntryKind
	Node map[string]any
}

// containerStrategy locates the instruction list inside one known top-level
// response shape.
type containerStrategy struct {
	name  string
	probe func(body map[string]any) []any
}

// Probed in order; first structurally-present container wins.
var containerStrategies = []containerStrategy{
	{"home-timeline", func(body map[string]any) []any {
		return childSlice(body, "data", "home", "home_timeline_urt", "instructions")
	}},
	{"conversation", func(body map[string]any) []any {
		return childSlice(body, "data", "threaded_conversation_with_injections_v2", "instructions")
	}},
	{"user-timeline", func(body map[string]any) []any {
		return childSlice(body, "data", "user", "result", "timeline_v2", "timeline", "instructions")
	}},
	{"search-timeline", func(body map[string]any) []any {
		return childSlice(body, "data", "search_by_raw_query", "search_timeline", "timeline", "instructions")
	}},
	{"retweeters", func(body map[string]any) []any {
		return childSlice(body, "data", "retweeters_timeline", "timeline", "instructions")
	}},
	{"quotes", func(body map[string]any) []any {
		return childSlice(body, "data", "quotes_timeline", "timeline", "instructions")
	}},
	{"user-list", func(body map[string]any) []any {
		return childSlice(body, "data", "user", "result", "timeline", "timeline", "instructions")
	}},
}

// ExtractEntries walks a parsed response body and returns every discrete
// content item, irrespective of which known container shape produced it. An
// unrecognized body yields nothing; that is "nothing to do", not an error.
func ExtractEntries(body map[string]any) []Entry {
	var instructions []any
	for _, strat := range containerStrategies {
		if found := strat.probe(body); found != nil {
			instructions = found
			break
		}
	}

	var out []Entry
	for _, raw := range instructions {
		instr, ok := raw.(map[string]any)
		if !ok || stringField(instr, "type") != "TimelineAddEntries" {
			continue
		}
		for _, rawEntry := range childSlice(instr, "entries") {
			entry, ok := rawEntry.(map[string]any)
			if !ok {
				continue
			}
			content := childMap(entry, "content")
			if content == nil {
				continue
			}
			switch stringField(content, "entryType") {
			case "TimelineTimelineItem":
				if e, ok := itemEntry(childMap(content, "itemContent")); ok {
					out = append(out, e)
				}
			case "TimelineTimelineModule":
				for _, rawItem := range childSlice(content, "items") {
					item, ok := rawItem.(map[string]any)
					if !ok {
						continue
					}
					if e, ok := itemEntry(childMap(item, "item", "itemContent")); ok {
						out = append(out, e)
					}
				}
			}
		}
	}
	return out
}

func itemEntry(itemContent map[string]any) (Entry, bool) {
	if itemContent == nil {
		return Entry{}, false
	}
	switch stringField(itemContent, "itemType") {
	case "TimelineTweet":
		if node := childMap(itemContent, "tweet_results", "result"); node != nil {
			return Entry{Kind: TweetEntry, Node: node}, true
		}
	case "TimelineUser":
		if node := childMap(itemContent, "user_results", "result"); node != nil {
			return Entry{Kind: UserEntry, Node: node}, true
		}
	}
	return Entry{}, false
}
