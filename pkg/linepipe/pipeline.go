// Package linepipe splits a chunked byte stream into terminator-delimited lines and hands
// them, decoded and numbered, to a pool of concurrent consumers.
package linepipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
)

// Pipeline runs the read-scan-dispatch loop against a pool of consumers.
// A Pipeline holds only configuration and may run several sources, also concurrently.
type Pipeline struct {
	opts     Options
	encoding encoding.Encoding
}

// New validates opts and creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	enc, err := EncodingByName(opts.Encoding, opts.Terminator)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:     opts,
		encoding: enc,
	}, nil
}

// Options returns the configuration of the pipeline.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run reads src to the end, calling consume once per line. The returned result is never nil;
// the error is the first fatal failure of the run, also stored in Result.Err. Per-line
// consumer failures are not fatal and are collected in Result.RecordErrors.
//
// With a pool size of one, consume observes lines in stream order. With more workers the
// completion order may differ; use a Resequencer keyed on Line.Seq to restore it.
func (p *Pipeline) Run(ctx context.Context, src ChunkSource, consume ConsumerFunc) (*Result, error) {
	if consume == nil {
		err := fmt.Errorf("%w: consumer function is required", ErrInvalidOptions)
		return &Result{Err: err}, err
	}

	startedAt := time.Now()
	log.Debug().
		Int("pool_size", p.opts.PoolSize).
		Int("queue_capacity", p.opts.QueueCapacity).
		Str("encoding", p.opts.Encoding).
		Stringer("trailing", p.opts.Trailing).
		Msg("starting pipeline run")

	queue := NewDispatchQueue(p.opts.QueueCapacity, p.opts.MaxQueuedBytes)
	consumers := startConsumerPool(ctx, p.opts.PoolSize, queue, consume)

	d := newDriver(p.opts, src, queue, newLineDecoder(p.opts.Encoding, p.encoding))
	driverErr := d.run(ctx)
	if driverErr != nil && !errors.Is(driverErr, queue.Err()) {
		log.Error().Err(driverErr).
			Uint64("seq", d.seq).
			Int64("bytes_read", d.bytesRead).
			Msg("pipeline producer failed")
	}

	// the queue is closed by now, so workers drain what is left and stop
	report := consumers.wait()
	d.transition(stateClosed)

	fatal := driverErr
	if fatal == nil {
		fatal = queue.Err()
	}
	// a cancellation that arrived after every line was handled did not cut the run short
	handled := report.processed + uint64(len(report.recordErrors))
	if fatal == nil && handled < d.seq {
		fatal = ctx.Err()
	}

	result := &Result{
		Lines:        d.seq,
		Processed:    report.processed,
		Bytes:        d.bytesRead,
		RecordErrors: report.recordErrors,
		Err:          fatal,
	}

	log.Debug().
		Uint64("lines", result.Lines).
		Uint64("processed", result.Processed).
		Int("record_errors", len(result.RecordErrors)).
		Int64("bytes", result.Bytes).
		Bool("failed", fatal != nil).
		Str("duration", time.Since(startedAt).String()).
		Msg("pipeline run completed")

	return result, fatal
}

// Run is a convenience wrapper creating a pipeline from opts and running it once.
func Run(ctx context.Context, src ChunkSource, consume ConsumerFunc, opts Options) (*Result, error) {
	p, err := New(opts)
	if err != nil {
		return &Result{Err: err}, err
	}
	return p.Run(ctx, src, consume)
}
