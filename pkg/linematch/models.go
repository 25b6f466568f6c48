package linematch

// Query represents the per-line match configuration.
type Query struct {
	// Pattern is the text or regex to look for; an empty pattern matches every line
	Pattern string `json:"pattern"`

	// IsRegex indicates whether Pattern is a regular expression
	IsRegex bool `json:"isRegex"`

	// IgnoreCase controls whether to perform case-insensitive matching
	IgnoreCase bool `json:"ignoreCase"`

	// StripMarkup removes HTML tags from a line before matching
	StripMarkup bool `json:"stripMarkup"`

	// MaxWidth truncates reported lines to this many runes, 0 keeps them whole
	MaxWidth int `json:"maxWidth,omitempty"`
}

// Match represents a single line that satisfied a query.
type Match struct {
	// Seq is the position of the line in its stream.
	Seq uint64 `json:"seq"`

	// Offset is the byte offset of the line in its stream.
	Offset int64 `json:"offset"`

	// Line is the matched text, after markup stripping and truncation.
	Line string `json:"line"`
}
