package linepipe

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfStream is returned by DispatchQueue.Pop once the queue is closed and drained.
	ErrEndOfStream = errors.New("end of stream")

	// ErrQueueClosed is returned when pushing to a queue that has been closed.
	ErrQueueClosed = errors.New("dispatch queue closed")

	// ErrResourceExhausted marks consumer failures that are fatal to the whole run.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidOptions is wrapped by every Options validation failure.
	ErrInvalidOptions = errors.New("invalid options")
)

// ChunkSourceError reports an I/O failure while fetching the next chunk.
type ChunkSourceError struct {
	// Offset is the number of bytes successfully read before the failure.
	Offset int64

	// Err is the underlying failure.
	Err error
}

func (e *ChunkSourceError) Error() string {
	return fmt.Sprintf("chunk source failed at byte offset %d: %v", e.Offset, e.Err)
}

func (e *ChunkSourceError) Unwrap() error {
	return e.Err
}

// DecodeError reports a consumed byte range that is not valid text under the configured encoding.
type DecodeError struct {
	// Offset is the stream offset of the first byte of the line.
	Offset int64

	// Seq is the sequence number the line would have received.
	Seq uint64

	// Encoding is the name of the encoding that rejected the bytes.
	Encoding string

	// Err is the underlying failure.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s text in line %d at byte offset %d: %v", e.Encoding, e.Seq, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConsumerError is a per-record failure returned (or panicked) by a ConsumerFunc.
type ConsumerError struct {
	// Seq is the sequence number of the failed line.
	Seq uint64

	// Err is the failure returned by the consumer.
	Err error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("consumer failed on line %d: %v", e.Seq, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// CapacityExceededError is returned when a hard memory ceiling is hit.
type CapacityExceededError struct {
	// Resource names the bounded resource, "queue" or "line".
	Resource string

	// Limit is the configured ceiling in bytes.
	Limit int64

	// Size is the size that would have been reached.
	Size int64

	// Offset is the stream offset at which the ceiling was detected.
	Offset int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s capacity exceeded at byte offset %d: %d bytes > limit %d", e.Resource, e.Offset, e.Size, e.Limit)
}

// Is lets errors.Is(err, ErrResourceExhausted) match capacity failures.
func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrResourceExhausted
}

// isFatalConsumerError reports whether a consumer failure must abort the run.
func isFatalConsumerError(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
