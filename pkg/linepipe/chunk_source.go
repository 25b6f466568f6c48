package linepipe

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultChunkSize is the read size used by ReaderSource when none is given.
const DefaultChunkSize = 64 * 1024

// maxConsecutiveEmptyReads is the number of (0, nil) reads after which a reader is
// reported as stuck, as in bufio.
const maxConsecutiveEmptyReads = 100

// Chunk is one delivery of bytes from a ChunkSource. It is a view over one or more
// discontiguous regions that together form the next part of the stream.
type Chunk struct {
	regions [][]byte
}

// NewChunk returns a chunk backed by a single contiguous region.
func NewChunk(b []byte) Chunk {
	return Chunk{regions: [][]byte{b}}
}

// NewVectorChunk returns a chunk made of several discontiguous regions, in stream order.
func NewVectorChunk(regions ...[]byte) Chunk {
	return Chunk{regions: regions}
}

// Regions returns the regions of the chunk in stream order.
func (c Chunk) Regions() [][]byte {
	return c.regions
}

// Len returns the total number of bytes in the chunk.
func (c Chunk) Len() int {
	n := 0
	for _, r := range c.regions {
		n += len(r)
	}
	return n
}

// ChunkSource supplies successive chunks of the input stream.
type ChunkSource interface {
	// NextChunk returns the next chunk, or io.EOF once the input is exhausted.
	// Calls after io.EOF keep returning io.EOF.
	NextChunk(ctx context.Context) (Chunk, error)
}

// ChunkReleaser is implemented by sources that want regions back once they are fully consumed.
type ChunkReleaser interface {
	// Release hands back a region previously delivered in a Chunk.
	Release(region []byte)
}

// ReaderSource delivers chunks read from an io.Reader into pooled buffers.
type ReaderSource struct {
	r         io.Reader
	chunkSize int
	offset    int64
	err       error
	buffers   sync.Pool
}

var _ ChunkSource = (*ReaderSource)(nil)
var _ ChunkReleaser = (*ReaderSource)(nil)

// NewReaderSource creates a source reading chunkSize bytes at a time from r.
func NewReaderSource(r io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	s := &ReaderSource{
		r:         r,
		chunkSize: chunkSize,
	}
	s.buffers.New = func() any {
		buf := make([]byte, s.chunkSize)
		return &buf
	}
	return s
}

// NextChunk reads the next chunk. Short reads are delivered as they are.
func (s *ReaderSource) NextChunk(ctx context.Context) (Chunk, error) {
	for empty := 0; ; empty++ {
		if s.err == nil && empty >= maxConsecutiveEmptyReads {
			s.err = &ChunkSourceError{Offset: s.offset, Err: io.ErrNoProgress}
		}
		if s.err != nil {
			return Chunk{}, s.err
		}

		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		default:
		}

		bufPtr := s.buffers.Get().(*[]byte)
		buf := (*bufPtr)[:s.chunkSize]

		n, err := s.r.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
			} else {
				s.err = &ChunkSourceError{Offset: s.offset + int64(n), Err: err}
			}
		}

		if n > 0 {
			s.offset += int64(n)
			// a trailing error is reported on the following call
			return NewChunk(buf[:n]), nil
		}
		s.buffers.Put(bufPtr)
	}
}

// Release returns a region to the buffer pool.
func (s *ReaderSource) Release(region []byte) {
	if cap(region) != s.chunkSize {
		return
	}
	buf := region[:cap(region)]
	s.buffers.Put(&buf)
}

// Offset returns the number of bytes read so far.
func (s *ReaderSource) Offset() int64 {
	return s.offset
}

// SliceSource delivers a fixed sequence of chunks. It is mostly useful in tests.
type SliceSource struct {
	chunks []Chunk
	next   int
}

var _ ChunkSource = (*SliceSource)(nil)

// NewSliceSource creates a source delivering one single-region chunk per element.
func NewSliceSource(chunks ...[]byte) *SliceSource {
	s := &SliceSource{chunks: make([]Chunk, 0, len(chunks))}
	for _, c := range chunks {
		s.chunks = append(s.chunks, NewChunk(c))
	}
	return s
}

// NewChunkSliceSource creates a source delivering the given chunks verbatim.
func NewChunkSliceSource(chunks ...Chunk) *SliceSource {
	return &SliceSource{chunks: chunks}
}

// NextChunk returns the next configured chunk or io.EOF.
func (s *SliceSource) NextChunk(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.next >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.next]
	s.next++
	return c, nil
}
