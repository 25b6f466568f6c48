package linematch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// TestMatcher verifies query semantics on single lines.
func TestMatcher(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		text  string
		want  string
		ok    bool
	}{
		{name: "Substring", query: Query{Pattern: "DEF"}, text: "ABCDEFG", want: "ABCDEFG", ok: true},
		{name: "NoMatch", query: Query{Pattern: "xyz"}, text: "ABCDEFG", ok: false},
		{name: "LiteralMeta", query: Query{Pattern: "a.c"}, text: "abc", ok: false},
		{name: "IgnoreCase", query: Query{Pattern: "def", IgnoreCase: true}, text: "ABCDEFG", want: "ABCDEFG", ok: true},
		{name: "Regex", query: Query{Pattern: `^\d+$`, IsRegex: true}, text: "12345", want: "12345", ok: true},
		{name: "EmptyPattern", query: Query{}, text: "", want: "", ok: true},
		{name: "MaxWidth", query: Query{MaxWidth: 5}, text: "ABCDEFG", want: "ABCDE", ok: true},
		{name: "MarkupHidesMatch", query: Query{Pattern: "span", StripMarkup: true}, text: "<span>text</span>", ok: false},
		{name: "MarkupStripped", query: Query{Pattern: "Hello world", StripMarkup: true}, text: "<p>Hello <i>world</i></p>", want: "Hello world", ok: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := NewMatcher(test.query)
			if err != nil {
				t.Fatalf("NewMatcher failed: %v", err)
			}

			got, ok := m.Match(linepipe.Line{Seq: 3, Text: test.text, Offset: 40})
			if ok != test.ok {
				t.Fatalf("Expected match %v, got %v", test.ok, ok)
			}
			if !ok {
				return
			}
			want := Match{Seq: 3, Offset: 40, Line: test.want}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("unexpected match diff (want->got):\n%s", diff)
			}
		})
	}
}

// TestMatcherInvalidRegex verifies invalid patterns are rejected.
func TestMatcherInvalidRegex(t *testing.T) {
	if _, err := NewMatcher(Query{Pattern: "(unclosed", IsRegex: true}); err == nil {
		t.Error("Expected error for invalid pattern, got nil")
	}
}

// numberedInput builds n CRLF-terminated lines "line 0" to "line n-1".
func numberedInput(n int) []byte {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "line %d\r\n", i)
	}
	return []byte(sb.String())
}

// TestCollector verifies unordered collection through a pipeline run.
func TestCollector(t *testing.T) {
	m, err := NewMatcher(Query{Pattern: `7$`, IsRegex: true})
	if err != nil {
		t.Fatal(err)
	}
	c := NewCollector(m)

	opts := linepipe.DefaultOptions()
	opts.PoolSize = 4
	res, err := linepipe.Run(context.Background(), linepipe.NewSliceSource(numberedInput(100)), c.Consume, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var got []string
	for _, match := range c.Matches() {
		got = append(got, match.Line)
	}
	want := []string{"line 7", "line 17", "line 27", "line 37", "line 47", "line 57", "line 67", "line 77", "line 87", "line 97"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected matches (want->got):\n%s", diff)
	}
	if c.Seen() != res.Lines {
		t.Errorf("Expected %d lines seen, got %d", res.Lines, c.Seen())
	}
}

// TestOrderedCollector verifies that matches are streamed in line order with many workers.
func TestOrderedCollector(t *testing.T) {
	m, err := NewMatcher(Query{Pattern: "line", MaxWidth: 6})
	if err != nil {
		t.Fatal(err)
	}

	var seqs []uint64
	c := NewOrderedCollector(m, func(match Match) {
		seqs = append(seqs, match.Seq)
		if match.Line != "line "+fmt.Sprint(match.Seq)[:1] {
			t.Errorf("Unexpected truncated line '%s' for seq %d", match.Line, match.Seq)
		}
	})

	opts := linepipe.DefaultOptions()
	opts.PoolSize = 8
	opts.QueueCapacity = 16
	src := linepipe.NewReaderSource(strings.NewReader(string(numberedInput(1000))), 37)
	if _, err := linepipe.Run(context.Background(), src, c.Consume, opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(seqs) != 1000 {
		t.Fatalf("Expected 1000 matches, got %d", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i) {
			t.Fatalf("Expected seq %d at position %d, got %d", i, i, seq)
		}
	}
	if c.Pending() != 0 || len(c.Matches()) != 0 {
		t.Errorf("Expected nothing held by an ordered collector, got %d pending", c.Pending())
	}
}
