package filter

import (
	"github.com/amishk599/auros/internal/keyword"
)

// TitleFilter decides whether a discovered posting title is worth fetching.
// A title passes when it contains any include term and no exclude term, both
// matched on word boundaries. An empty include list passes every title.
type TitleFilter struct {
	include *keyword.Matcher
	exclude *keyword.Matcher
}

// NewTitleFilter returns a filter over the given include and exclude terms.
func NewTitleFilter(include, exclude []string) *TitleFilter {
	return &TitleFilter{
		include: keyword.New(include),
		exclude: keyword.New(exclude),
	}
}

// Match returns true if title passes the filter.
func (f *TitleFilter) Match(title string) bool {
	if f.exclude.Any(title) {
		return false
	}
	if f.include.Len() == 0 {
		return true
	}
	return f.include.Any(title)
}
