package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuppress(t *testing.T) {
	assert := assert.New(t)

	node := map[string]any{
		"__typename": "Tweet",
		"rest_id":    "100",
		"core":       map[string]any{"user_results": map[string]any{}},
		"legacy":     map[string]any{"full_text": "some text"},
	}
	Suppress(node)

	assert.Equal(UnavailableType, node["__typename"])
	assert.Equal(FilteredReason, node["reason"])
	assert.NotContains(node, "legacy")
	assert.NotContains(node, "core")
	assert.Contains(node, "tombstone")
}

func TestSuppressIdempotent(t *testing.T) {
	once := map[string]any{"__typename": "Tweet", "legacy": map[string]any{"full_text": "x"}}
	Suppress(once)

	twice := map[string]any{"__typename": "Tweet", "legacy": map[string]any{"full_text": "x"}}
	Suppress(twice)
	Suppress(twice)

	assert.Equal(t, once, twice)
}

func TestSuppressNil(t *testing.T) {
	assert.NotPanics(t, func() { Suppress(nil) })
}
