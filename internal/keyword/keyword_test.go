package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Any(t *testing.T) {
	m := New([]string{"ai", "machine learning", "sre"})

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"whole word", "Lead the AI platform", true},
		{"substring inside word does not match", "Maintain the email pipeline", false},
		{"multi word across newline", "experience with Machine\nLearning systems", true},
		{"multi word with extra spaces", "machine    learning", true},
		{"punctuation boundary", "SRE/Platform team", true},
		{"no match", "Frontend engineer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Any(tt.text))
		})
	}
}

func TestMatcher_WordBoundaries(t *testing.T) {
	lead := New([]string{"lead"})
	assert.True(t, lead.Any("Maintainability Lead"))

	m := New([]string{"ai", "ment"})
	assert.False(t, m.Any("entertainment"))
	assert.Zero(t, m.Count("entertainment"))
}

func TestMatcher_CountDistinctTerms(t *testing.T) {
	m := New([]string{"ai", "ml", "cloud", "data"})

	assert.Equal(t, 0, m.Count("nothing relevant here"))
	assert.Equal(t, 1, m.Count("AI, AI and more AI"))
	assert.Equal(t, 3, m.Count("AI and ML on the cloud"))
}

func TestMatcher_SkipsBlankAndDuplicateTerms(t *testing.T) {
	m := New([]string{"AI", "ai", "  ", "Machine  Learning", "machine learning"})

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, m.Count("ai and machine learning"))
}

func TestMatcher_QuotesRegexMetacharacters(t *testing.T) {
	m := New([]string{"c++", "node.js"})

	assert.False(t, m.Any("nodexjs"))
	assert.True(t, m.Any("we use node.js daily"))
}
