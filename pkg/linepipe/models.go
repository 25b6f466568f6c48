package linepipe

import (
	"context"
	"fmt"
	"runtime"
)

// Line is one decoded record handed to consumers.
type Line struct {
	// Seq is the zero-based position of the line in the byte stream.
	Seq uint64 `json:"seq"`

	// Text is the decoded line without its terminator.
	Text string `json:"text"`

	// Offset is the stream offset of the first byte of the line.
	Offset int64 `json:"offset"`
}

// ConsumerFunc processes a single line. It may be called concurrently on different lines.
type ConsumerFunc func(ctx context.Context, line Line) error

// Terminator is the two-byte marker separating lines.
type Terminator [2]byte

// CRLF is the default carriage-return + line-feed terminator.
var CRLF = Terminator{'\r', '\n'}

func (t Terminator) String() string {
	return fmt.Sprintf("%q", string(t[:]))
}

// TrailingPolicy decides what happens to bytes left after the last terminator at end of input.
type TrailingPolicy int

const (
	// TrailingEmit emits the unterminated remainder as a final line.
	TrailingEmit TrailingPolicy = iota

	// TrailingDrop discards the unterminated remainder.
	TrailingDrop
)

func (p TrailingPolicy) String() string {
	switch p {
	case TrailingEmit:
		return "emit"
	case TrailingDrop:
		return "drop"
	default:
		return fmt.Sprintf("TrailingPolicy(%d)", int(p))
	}
}

// Unbounded configures a dispatch queue that never blocks the producer.
const Unbounded = -1

// Options configures a Pipeline.
type Options struct {
	// Terminator separates lines, CRLF by default
	Terminator Terminator `json:"terminator"`

	// Encoding is the IANA name of the text encoding, "utf-8" by default
	Encoding string `json:"encoding"`

	// PoolSize is the number of consumer workers
	PoolSize int `json:"poolSize"`

	// QueueCapacity bounds the dispatch queue; Unbounded disables backpressure
	QueueCapacity int `json:"queueCapacity"`

	// MaxQueuedBytes is a hard ceiling on text held by the queue, 0 means no ceiling
	MaxQueuedBytes int64 `json:"maxQueuedBytes,omitempty"`

	// MaxLineLength is a hard ceiling on a single pending line, 0 means no ceiling
	MaxLineLength int64 `json:"maxLineLength,omitempty"`

	// Trailing is the end-of-input policy for an unterminated last line
	Trailing TrailingPolicy `json:"trailing"`
}

// DefaultOptions returns options for a CRLF, UTF-8 pipeline with one worker per CPU.
func DefaultOptions() Options {
	return Options{
		Terminator:    CRLF,
		Encoding:      "utf-8",
		PoolSize:      runtime.NumCPU(),
		QueueCapacity: 1024,
		Trailing:      TrailingEmit,
	}
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.Terminator[0] == o.Terminator[1] {
		// a repeated byte makes "\r\r\r" ambiguous between overlapping matches
		return fmt.Errorf("%w: terminator %s must consist of two distinct bytes", ErrInvalidOptions, o.Terminator)
	}
	if o.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be positive, got %d", ErrInvalidOptions, o.PoolSize)
	}
	if o.QueueCapacity == 0 || o.QueueCapacity < Unbounded {
		return fmt.Errorf("%w: queue capacity must be positive or Unbounded, got %d", ErrInvalidOptions, o.QueueCapacity)
	}
	if o.MaxQueuedBytes < 0 {
		return fmt.Errorf("%w: max queued bytes must not be negative", ErrInvalidOptions)
	}
	if o.MaxLineLength < 0 {
		return fmt.Errorf("%w: max line length must not be negative", ErrInvalidOptions)
	}
	if o.Trailing != TrailingEmit && o.Trailing != TrailingDrop {
		return fmt.Errorf("%w: unknown trailing policy %s", ErrInvalidOptions, o.Trailing)
	}
	return nil
}

// Result summarises a pipeline run.
type Result struct {
	// Lines is the number of lines dispatched to consumers.
	Lines uint64 `json:"lines"`

	// Processed is the number of lines whose consumer returned without error.
	Processed uint64 `json:"processed"`

	// Bytes is the number of bytes received from the chunk source.
	Bytes int64 `json:"bytes"`

	// RecordErrors lists per-record consumer failures ordered by sequence number.
	RecordErrors []*ConsumerError `json:"-"`

	// Err is the first fatal error of the run, if any.
	Err error `json:"-"`
}
