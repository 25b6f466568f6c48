package linematch

import (
	"regexp"
	"sync"
)

// patternCache shares compiled patterns between matchers built for the same query.
// A full cache is cleared instead of evicting single entries.
type patternCache struct {
	mu      sync.Mutex
	maxSize int
	cache   map[string]*regexp.Regexp
}

// newPatternCache creates a cache holding at most maxSize patterns.
func newPatternCache(maxSize int) *patternCache {
	return &patternCache{
		maxSize: maxSize,
		cache:   make(map[string]*regexp.Regexp),
	}
}

// get returns the compiled pattern, compiling it on first use.
func (pc *patternCache) get(pattern string) (*regexp.Regexp, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if re, ok := pc.cache[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	if len(pc.cache) >= pc.maxSize {
		clear(pc.cache)
	}
	pc.cache[pattern] = re
	return re, nil
}

// size returns the number of cached patterns.
func (pc *patternCache) size() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.cache)
}

var sharedPatterns = newPatternCache(16)
