package linepipe

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
)

// generateRecords creates CRLF-delimited content for benchmarking.
func generateRecords(lines int) string {
	var builder strings.Builder
	builder.Grow(lines * 64)

	for i := range lines {
		builder.WriteString(fmt.Sprintf("Record %d has some regular content for benchmarking.\r\n", i))
	}

	return builder.String()
}

// benchmarkPipeline runs a pipeline over content with the given pool size and chunk size.
func benchmarkPipeline(b *testing.B, content string, poolSize, chunkSize int) {
	opts := DefaultOptions()
	opts.PoolSize = poolSize
	p, err := New(opts)
	if err != nil {
		b.Fatal(err)
	}

	consume := func(_ context.Context, line Line) error {
		if len(line.Text) > 5 {
			_ = line.Text[:5]
		}
		return nil
	}

	b.ReportAllocs()
	b.SetBytes(int64(len(content)))

	for b.Loop() {
		src := NewReaderSource(strings.NewReader(content), chunkSize)
		if _, err := p.Run(context.Background(), src, consume); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipeline_SingleWorker benchmarks ordered processing with one worker.
func BenchmarkPipeline_SingleWorker(b *testing.B) {
	benchmarkPipeline(b, generateRecords(10000), 1, DefaultChunkSize)
}

// BenchmarkPipeline_AllCPUs benchmarks processing with one worker per CPU.
func BenchmarkPipeline_AllCPUs(b *testing.B) {
	benchmarkPipeline(b, generateRecords(10000), runtime.NumCPU(), DefaultChunkSize)
}

// BenchmarkPipeline_SmallChunks benchmarks lines straddling many small chunks.
func BenchmarkPipeline_SmallChunks(b *testing.B) {
	benchmarkPipeline(b, generateRecords(10000), runtime.NumCPU(), 13)
}

// BenchmarkLineScanner benchmarks scanning without the queue and workers.
func BenchmarkLineScanner(b *testing.B) {
	content := []byte(generateRecords(10000))
	s := newLineScanner(CRLF)

	b.ReportAllocs()
	b.SetBytes(int64(len(content)))

	for b.Loop() {
		var pb pendingBuffer
		pb.append(content)
		for {
			ref, ok := s.scan(&pb)
			if !ok {
				break
			}
			pb.consume(ref.consumed, nil)
		}
	}
}
