// Package linematch filters and shapes the lines produced by a linepipe pipeline.
package linematch

import (
	"fmt"
	"regexp"

	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// Matcher applies a Query to lines. It is safe for concurrent use.
type Matcher struct {
	query   Query
	pattern *regexp.Regexp
}

// NewMatcher compiles the query pattern, sharing compiled patterns between matchers.
func NewMatcher(query Query) (*Matcher, error) {
	pattern := query.Pattern
	if !query.IsRegex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if query.IgnoreCase && pattern != "" {
		pattern = "(?i)" + pattern
	}

	re, err := sharedPatterns.get(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", query.Pattern, err)
	}

	return &Matcher{
		query:   query,
		pattern: re,
	}, nil
}

// Query returns the query the matcher was built from.
func (m *Matcher) Query() Query {
	return m.query
}

// Match reports whether the line satisfies the query, and the match to report for it.
func (m *Matcher) Match(line linepipe.Line) (Match, bool) {
	text := line.Text
	if m.query.StripMarkup {
		text = StripMarkup(text)
	}

	if !m.pattern.MatchString(text) {
		return Match{}, false
	}

	if m.query.MaxWidth > 0 {
		text = Head(text, m.query.MaxWidth)
	}
	return Match{Seq: line.Seq, Offset: line.Offset, Line: text}, true
}
