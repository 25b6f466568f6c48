package linepipe

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// TestReaderSource verifies chunk sizes, sticky end of input and buffer recycling.
func TestReaderSource(t *testing.T) {
	ctx := context.Background()
	src := NewReaderSource(strings.NewReader("0123456789"), 4)

	var sizes []int
	for {
		chunk, err := src.NextChunk(ctx)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("NextChunk failed: %v", err)
		}
		sizes = append(sizes, chunk.Len())
		for _, region := range chunk.Regions() {
			src.Release(region)
		}
	}

	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Errorf("Expected chunk sizes [4 4 2], got %v", sizes)
	}
	if src.Offset() != 10 {
		t.Errorf("Expected offset 10, got %d", src.Offset())
	}

	for range 3 {
		if _, err := src.NextChunk(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF after end of input, got %v", err)
		}
	}
}

// TestReaderSourceDefaultChunkSize verifies the default chunk size.
func TestReaderSourceDefaultChunkSize(t *testing.T) {
	src := NewReaderSource(strings.NewReader("x"), 0)
	if src.chunkSize != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, src.chunkSize)
	}
}

// TestReaderSourceError verifies read failures carry the offset and are sticky.
func TestReaderSourceError(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("disk on fire")
	src := NewReaderSource(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(failure)), 16)

	chunk, err := src.NextChunk(ctx)
	if err != nil {
		t.Fatalf("Expected first chunk, got %v", err)
	} else if chunk.Len() != 3 {
		t.Errorf("Expected 3 bytes, got %d", chunk.Len())
	}

	for range 2 {
		_, err = src.NextChunk(ctx)
		var sourceErr *ChunkSourceError
		if !errors.As(err, &sourceErr) {
			t.Fatalf("Expected ChunkSourceError, got %v", err)
		}
		if sourceErr.Offset != 3 {
			t.Errorf("Expected offset 3, got %d", sourceErr.Offset)
		}
		if !errors.Is(err, failure) {
			t.Errorf("Expected wrapped failure, got %v", err)
		}
	}
}

// stuckReader never returns data nor an error.
type stuckReader struct {
	reads int
}

func (r *stuckReader) Read([]byte) (int, error) {
	r.reads++
	return 0, nil
}

// TestReaderSourceNoProgress verifies a reader stuck on empty reads fails instead of spinning.
func TestReaderSourceNoProgress(t *testing.T) {
	r := &stuckReader{}
	src := NewReaderSource(r, 8)

	for range 2 {
		_, err := src.NextChunk(context.Background())
		var sourceErr *ChunkSourceError
		if !errors.As(err, &sourceErr) {
			t.Fatalf("Expected ChunkSourceError, got %v", err)
		}
		if !errors.Is(err, io.ErrNoProgress) {
			t.Errorf("Expected io.ErrNoProgress, got %v", err)
		}
	}

	if r.reads != maxConsecutiveEmptyReads {
		t.Errorf("Expected %d reads, got %d", maxConsecutiveEmptyReads, r.reads)
	}
}

// TestReaderSourceCancelled verifies a cancelled context stops reading.
func TestReaderSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewReaderSource(strings.NewReader("abc"), 4)
	if _, err := src.NextChunk(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestSliceSource verifies verbatim delivery of configured chunks.
func TestSliceSource(t *testing.T) {
	ctx := context.Background()
	src := NewChunkSliceSource(NewChunk([]byte("a")), NewVectorChunk([]byte("b"), []byte("cd")))

	first, err := src.NextChunk(ctx)
	if err != nil || first.Len() != 1 {
		t.Fatalf("Expected 1-byte chunk, got %d, %v", first.Len(), err)
	}

	second, err := src.NextChunk(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Regions()) != 2 || second.Len() != 3 {
		t.Errorf("Expected 2 regions of 3 bytes, got %d regions of %d", len(second.Regions()), second.Len())
	}

	for range 2 {
		if _, err := src.NextChunk(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF, got %v", err)
		}
	}
}
