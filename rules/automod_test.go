package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoModerationReason(t *testing.T) {
	assert := assert.New(t)
	keywords := []string{"badword", "worseword"}

	assert.Equal("badword", AutoModerationReason("BadWordAppreciator", "", keywords))
	assert.Equal("worseword", AutoModerationReason("normal", "The WorseWord Account", keywords))
	assert.Equal("", AutoModerationReason("normal", "nothing to see", keywords))
	assert.Equal("", AutoModerationReason("", "", keywords))
	assert.Equal("", AutoModerationReason("anything", "anything", nil))

	// configured order wins when several match
	assert.Equal("badword", AutoModerationReason("worseword", "badword", keywords))
}

func TestParseList(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]string{"a", "b c", "d"}, ParseList(" A, b C ,, d,"))
	assert.Nil(ParseList(""))
	assert.Nil(ParseList(" , ,"))
}
