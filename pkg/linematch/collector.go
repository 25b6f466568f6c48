package linematch

import (
	"context"
	"slices"
	"sync"

	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// Collector gathers the matches of a pipeline run. Its Consume method is a
// linepipe.ConsumerFunc and may be called from many workers at once.
type Collector struct {
	matcher *Matcher

	mu      sync.Mutex
	matches []Match
	seen    uint64

	// reseq is set in ordered mode, where matches are streamed instead of kept
	reseq *linepipe.Resequencer[*Match]
}

// NewCollector creates a collector keeping every match in memory.
func NewCollector(matcher *Matcher) *Collector {
	return &Collector{matcher: matcher}
}

// NewOrderedCollector creates a collector passing matches to emit in stream order, as soon
// as every earlier line has been seen. emit is never called concurrently.
func NewOrderedCollector(matcher *Matcher, emit func(Match)) *Collector {
	return &Collector{
		matcher: matcher,
		reseq: linepipe.NewResequencer(func(_ uint64, m *Match) {
			if m != nil {
				emit(*m)
			}
		}),
	}
}

// Consume matches one line.
func (c *Collector) Consume(_ context.Context, line linepipe.Line) error {
	m, ok := c.matcher.Match(line)

	if c.reseq != nil {
		// non-matching lines still advance the sequence
		if ok {
			c.reseq.Add(line.Seq, &m)
		} else {
			c.reseq.Add(line.Seq, nil)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++
	if ok && c.reseq == nil {
		c.matches = append(c.matches, m)
	}
	return nil
}

// Matches returns the collected matches ordered by sequence number.
// It is always empty for an ordered collector.
func (c *Collector) Matches() []Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := slices.Clone(c.matches)
	slices.SortFunc(out, func(a, b Match) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Seen returns the number of lines consumed so far.
func (c *Collector) Seen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// Pending returns the number of lines an ordered collector holds back, waiting for an
// earlier line. A non-zero value after a run means some lines never reached the collector.
func (c *Collector) Pending() int {
	if c.reseq == nil {
		return 0
	}
	return c.reseq.Pending()
}
