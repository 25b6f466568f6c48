package linepipe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// driverState is a phase of the read-scan-dispatch loop.
type driverState int

const (
	stateIdle driverState = iota
	stateReading
	stateScanning
	stateDispatching
	stateDraining
	stateClosed
)

func (s driverState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReading:
		return "reading"
	case stateScanning:
		return "scanning"
	case stateDispatching:
		return "dispatching"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("driverState(%d)", int(s))
	}
}

// driver owns the pending buffer and is the only producer of the dispatch queue.
type driver struct {
	opts    Options
	src     ChunkSource
	queue   *DispatchQueue
	scanner *lineScanner
	decoder *lineDecoder
	release func([]byte)

	pending pendingBuffer
	state   driverState

	// seq is the sequence number of the next line, and so the count of dispatched lines
	seq uint64

	// bytesRead is the number of bytes received from the source
	bytesRead int64
}

// newDriver creates a driver in the idle state.
func newDriver(opts Options, src ChunkSource, queue *DispatchQueue, decoder *lineDecoder) *driver {
	d := &driver{
		opts:    opts,
		src:     src,
		queue:   queue,
		scanner: newLineScanner(opts.Terminator),
		decoder: decoder,
		state:   stateIdle,
	}
	if releaser, ok := src.(ChunkReleaser); ok {
		d.release = releaser.Release
	}
	return d
}

// transition moves the driver to the next state.
func (d *driver) transition(next driverState) {
	if d.state == next {
		return
	}
	log.Trace().Stringer("from", d.state).Stringer("to", next).Uint64("seq", d.seq).Msg("driver state")
	d.state = next
}

// run reads the whole source and dispatches every line. The queue is always closed on
// return; a non-nil error is fatal to the run.
func (d *driver) run(ctx context.Context) error {
	defer func() {
		d.pending.reset(d.release)
		d.queue.Close()
	}()

	for {
		// a fatal consumer failure aborts the queue; stop before fetching more input
		if err := d.queue.Err(); err != nil {
			return err
		}

		d.transition(stateReading)
		chunk, err := d.src.NextChunk(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return d.sourceError(ctx, err)
		}

		for _, region := range chunk.Regions() {
			d.pending.append(region)
			d.bytesRead += int64(len(region))
		}
		log.Trace().
			Int("regions", len(chunk.Regions())).
			Int("size", chunk.Len()).
			Int64("pending", d.pending.size).
			Msg("chunk received")

		d.transition(stateScanning)
		if err := d.dispatchLines(ctx); err != nil {
			return err
		}
	}

	d.transition(stateDraining)
	if d.opts.Trailing == TrailingEmit {
		if ref, ok := d.scanner.remainder(&d.pending); ok {
			return d.dispatch(ctx, ref)
		}
	} else if !d.pending.empty() {
		log.Debug().
			Int64("offset", d.pending.offset).
			Int64("size", d.pending.size).
			Msg("dropping unterminated trailing line")
	}
	return nil
}

// dispatchLines scans the pending buffer until no complete line is left.
func (d *driver) dispatchLines(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ref, ok := d.scanner.scan(&d.pending)
		if !ok {
			return d.checkPendingLength()
		}

		if err := d.dispatch(ctx, ref); err != nil {
			return err
		}
		d.transition(stateScanning)
	}
}

// dispatch decodes a line, advances the cursor past it and pushes it to the queue.
func (d *driver) dispatch(ctx context.Context, ref lineRef) error {
	if limit := d.opts.MaxLineLength; limit > 0 && ref.length > limit {
		return &CapacityExceededError{Resource: "line", Limit: limit, Size: ref.length, Offset: ref.offset}
	}

	text, err := d.decoder.decode(ref.parts)
	if err != nil {
		return &DecodeError{Offset: ref.offset, Seq: d.seq, Encoding: d.decoder.name, Err: err}
	}

	// the text is a copy, so the segments can be released before the push
	line := Line{Seq: d.seq, Text: text, Offset: ref.offset}
	d.pending.consume(ref.consumed, d.release)

	d.transition(stateDispatching)
	if err := d.queue.Push(ctx, line); err != nil {
		return err
	}
	d.seq++
	return nil
}

// checkPendingLength fails when an unterminated line already exceeds the line limit.
// One extra byte is allowed for a terminator split across chunks.
func (d *driver) checkPendingLength() error {
	limit := d.opts.MaxLineLength
	if limit <= 0 || d.pending.size <= limit+int64(len(d.opts.Terminator)-1) {
		return nil
	}
	return &CapacityExceededError{Resource: "line", Limit: limit, Size: d.pending.size, Offset: d.pending.offset}
}

// sourceError normalises a failure returned by the chunk source.
func (d *driver) sourceError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}

	var sourceErr *ChunkSourceError
	if errors.As(err, &sourceErr) {
		return err
	}
	return &ChunkSourceError{Offset: d.bytesRead, Err: err}
}
