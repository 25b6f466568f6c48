package linematch

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// pooledTokenizer wraps an html.Tokenizer together with a reusable text buffer.
type pooledTokenizer struct {
	tokenizer *html.Tokenizer
	text      []byte
}

// newPooledTokenizer creates a tokenizer with a pre-allocated text buffer.
func newPooledTokenizer(r io.Reader) *pooledTokenizer {
	return &pooledTokenizer{
		tokenizer: html.NewTokenizer(r),
		text:      make([]byte, 0, 1024),
	}
}

// reset configures the tokenizer for a new reader while keeping the buffer capacity.
func (pt *pooledTokenizer) reset(r io.Reader) {
	pt.tokenizer = html.NewTokenizer(r)
	pt.text = pt.text[:0]
}

// tokenizerPool reuses tokenizers across lines, which are stripped concurrently by consumers.
var tokenizerPool = sync.Pool{
	New: func() any {
		return newPooledTokenizer(strings.NewReader(""))
	},
}

// StripMarkup returns the text content of an HTML fragment with tags removed, entities
// unescaped and whitespace collapsed. Script and style contents are dropped.
func StripMarkup(line string) string {
	if !strings.ContainsAny(line, "<&") {
		return collapseSpace(line)
	}

	pt := tokenizerPool.Get().(*pooledTokenizer)
	defer tokenizerPool.Put(pt)
	pt.reset(strings.NewReader(line))
	z := pt.tokenizer

	skip := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF at the end of the line; anything else leaves what was read so far
			break
		}

		switch tt {
		case html.TextToken:
			if !skip {
				// separate words from adjacent tags, collapsed below
				pt.text = append(pt.text, ' ')
				pt.text = append(pt.text, z.Text()...)
			}

		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip = tt == html.StartTagToken
			}
		}
	}

	return collapseSpace(string(pt.text))
}

// collapseSpace trims s and replaces every whitespace run with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Head returns the first n runes of s.
func Head(s string, n int) string {
	if n <= 0 {
		return ""
	} else if len(s) <= n {
		return s
	} else if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
