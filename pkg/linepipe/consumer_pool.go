package linepipe

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// workerReport is the tally a single worker returns when it stops.
type workerReport struct {
	processed    uint64
	recordErrors []*ConsumerError
}

// consumerPool runs a fixed number of workers pulling lines from a DispatchQueue.
type consumerPool struct {
	queue   *DispatchQueue
	consume ConsumerFunc
	workers *pool.ResultContextPool[workerReport]
}

// startConsumerPool launches size workers. They stop when the queue reports end of stream
// or when ctx ends.
func startConsumerPool(ctx context.Context, size int, queue *DispatchQueue, consume ConsumerFunc) *consumerPool {
	cp := &consumerPool{
		queue:   queue,
		consume: consume,
		workers: pool.NewWithResults[workerReport]().WithMaxGoroutines(size).WithContext(ctx),
	}

	for id := range size {
		cp.workers.Go(func(ctx context.Context) (workerReport, error) {
			return cp.work(ctx, id), nil
		})
	}
	return cp
}

// work is the loop of a single worker.
func (cp *consumerPool) work(ctx context.Context, id int) workerReport {
	var report workerReport
	for {
		line, err := cp.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, ErrEndOfStream) {
				log.Debug().Err(err).Int("worker", id).Msg("consumer stopped before end of stream")
			}
			return report
		}

		err = cp.apply(ctx, line)
		if err == nil {
			report.processed++
			continue
		}

		if isFatalConsumerError(err) {
			cause := &ConsumerError{Seq: line.Seq, Err: err}
			discarded := cp.queue.Abort(cause)
			log.Error().Err(err).
				Int("worker", id).
				Uint64("seq", line.Seq).
				Int("discarded", discarded).
				Msg("fatal consumer error, aborting run")
			return report
		}

		log.Debug().Err(err).
			Int("worker", id).
			Uint64("seq", line.Seq).
			Int64("offset", line.Offset).
			Msg("consumer failed on line")
		report.recordErrors = append(report.recordErrors, &ConsumerError{Seq: line.Seq, Err: err})
	}
}

// apply runs the consumer on one line, turning a panic into an error for that line.
func (cp *consumerPool) apply(ctx context.Context, line Line) error {
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = cp.consume(ctx, line)
	})
	if recovered := pc.Recovered(); recovered != nil {
		return recovered.AsError()
	}
	return err
}

// wait blocks until every worker has stopped and merges their reports.
func (cp *consumerPool) wait() workerReport {
	// workers never return errors; failures travel through reports and the queue
	reports, _ := cp.workers.Wait()

	var merged workerReport
	for _, r := range reports {
		merged.processed += r.processed
		merged.recordErrors = append(merged.recordErrors, r.recordErrors...)
	}
	slices.SortFunc(merged.recordErrors, func(a, b *ConsumerError) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	return merged
}
