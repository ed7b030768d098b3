// Package keyword matches term lists against free text on word boundaries.
package keyword

import (
	"regexp"
	"strings"
)

// Matcher holds one compiled pattern per term. Matching is case-insensitive,
// anchored on word boundaries, and tolerant of any whitespace run inside
// multi-word terms ("machine learning" matches "Machine\nLearning").
type Matcher struct {
	terms    []string
	patterns []*regexp.Regexp
}

// New compiles the given terms. Blank and duplicate terms are skipped.
func New(terms []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		norm := strings.ToLower(strings.Join(strings.Fields(t), " "))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		m.terms = append(m.terms, norm)
		m.patterns = append(m.patterns, regexp.MustCompile(pattern(norm)))
	}
	return m
}

func pattern(term string) string {
	words := strings.Fields(term)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `(?i)\b` + strings.Join(words, `\s+`) + `\b`
}

// Any reports whether at least one term occurs in text.
func (m *Matcher) Any(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Count returns the number of distinct terms that occur in text. Repeated
// occurrences of one term count once.
func (m *Matcher) Count(text string) int {
	n := 0
	for _, p := range m.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// Len returns the number of compiled terms.
func (m *Matcher) Len() int {
	return len(m.terms)
}
