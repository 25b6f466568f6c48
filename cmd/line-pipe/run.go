package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jfenske89/go-linepipe/pkg/linematch"
	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// stdinName is the input name standing for standard input
const stdinName = "-"

// countOutput represents count output in JSON format
type countOutput struct {
	Results []countResult `json:"results"`
	Summary countSummary  `json:"summary"`
}

// countResult represents the line count of one input
type countResult struct {
	Path  string `json:"path"`
	Lines uint64 `json:"lines"`
	Bytes int64  `json:"bytes"`
}

// countSummary provides count result summary
type countSummary struct {
	TotalFiles int    `json:"totalFiles"`
	TotalLines uint64 `json:"totalLines"`
	TotalBytes int64  `json:"totalBytes"`
}

// grepOutput represents grep output in JSON format
type grepOutput struct {
	Results []grepResult `json:"results"`
	Summary grepSummary  `json:"summary"`
}

// grepResult represents the matches found in one input
type grepResult struct {
	Path    string            `json:"path"`
	Lines   uint64            `json:"lines"`
	Matches []linematch.Match `json:"matches"`
}

// grepSummary provides grep result summary
type grepSummary struct {
	TotalFiles   int `json:"totalFiles"`
	TotalMatches int `json:"totalMatches"`
}

// streamedMatch is one NDJSON record of an ordered grep
type streamedMatch struct {
	Path string `json:"path"`
	linematch.Match
}

// inputHandler runs a pipeline over one input
type inputHandler func(ctx context.Context, index int, path string, src linepipe.ChunkSource) error

// processInputs runs handle for every input, at most flags.parallelFiles at a time.
// The first failing input cancels the others.
func processInputs(ctx context.Context, flags *pipelineFlags, inputs []string, handle inputHandler) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(flags.parallelFiles, 1))

	for i, path := range inputs {
		eg.Go(func() error {
			r, err := openInput(path)
			if err != nil {
				return err
			}
			defer r.Close()

			src := linepipe.NewReaderSource(r, flags.chunkSize)
			if err := handle(egCtx, i, path, src); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}

	return eg.Wait()
}

// openInput opens a file, or standard input for stdinName
func openInput(path string) (io.ReadCloser, error) {
	if path == stdinName {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// logRecordErrors reports per-line consumer failures of a run
func logRecordErrors(path string, res *linepipe.Result) {
	if len(res.RecordErrors) == 0 {
		return
	}
	log.Warn().
		Str("path", path).
		Int("failed_lines", len(res.RecordErrors)).
		Err(res.RecordErrors[0]).
		Msg("some lines could not be processed")
}

// runCount executes the count command
func runCount(ctx context.Context, flags *pipelineFlags, inputs []string) error {
	p, err := linepipe.New(buildOptions(flags))
	if err != nil {
		return err
	}

	startedAt := time.Now()
	log.Debug().Int("inputs", len(inputs)).Int("threads", flags.threads).Msg("starting line count")

	discard := func(context.Context, linepipe.Line) error {
		return nil
	}

	results := make([]countResult, len(inputs))
	if err := processInputs(ctx, flags, inputs, func(ctx context.Context, index int, path string, src linepipe.ChunkSource) error {
		res, err := p.Run(ctx, src, discard)
		if err != nil {
			return err
		}
		results[index] = countResult{
			Path:  path,
			Lines: res.Lines,
			Bytes: res.Bytes,
		}
		return nil
	}); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	output := countOutput{
		Results: results,
		Summary: countSummary{TotalFiles: len(results)},
	}
	for _, r := range results {
		output.Summary.TotalLines += r.Lines
		output.Summary.TotalBytes += r.Bytes
	}

	log.Debug().
		Uint64("total_lines", output.Summary.TotalLines).
		Str("duration", time.Since(startedAt).String()).
		Msg("line count completed")

	return outputJSON(output, flags.pretty)
}

// runGrep executes the grep command
func runGrep(ctx context.Context, flags *pipelineFlags, gflags *grepFlags, inputs []string) error {
	p, err := linepipe.New(buildOptions(flags))
	if err != nil {
		return err
	}

	matcher, err := linematch.NewMatcher(linematch.Query{
		Pattern:     gflags.pattern,
		IsRegex:     gflags.isRegex,
		IgnoreCase:  gflags.ignoreCase,
		StripMarkup: gflags.stripMarkup,
		MaxWidth:    gflags.maxWidth,
	})
	if err != nil {
		return err
	}

	startedAt := time.Now()
	log.Debug().
		Int("inputs", len(inputs)).
		Str("pattern", gflags.pattern).
		Bool("regex", gflags.isRegex).
		Bool("ordered", gflags.ordered).
		Msg("starting line search")

	if gflags.ordered {
		err = streamGrep(ctx, flags, p, matcher, inputs)
		log.Debug().Str("duration", time.Since(startedAt).String()).Msg("line search completed")
		return err
	}

	results := make([]grepResult, len(inputs))
	if err := processInputs(ctx, flags, inputs, func(ctx context.Context, index int, path string, src linepipe.ChunkSource) error {
		collector := linematch.NewCollector(matcher)
		res, err := p.Run(ctx, src, collector.Consume)
		if err != nil {
			return err
		}
		logRecordErrors(path, res)

		results[index] = grepResult{
			Path:    path,
			Lines:   res.Lines,
			Matches: collector.Matches(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	output := grepOutput{
		Results: results,
		Summary: grepSummary{TotalFiles: len(results)},
	}
	for _, r := range results {
		output.Summary.TotalMatches += len(r.Matches)
	}

	log.Debug().
		Int("total_matches", output.Summary.TotalMatches).
		Str("duration", time.Since(startedAt).String()).
		Msg("line search completed")

	return outputJSON(output, flags.pretty)
}

// streamGrep writes matches as NDJSON, in line order within each input
func streamGrep(ctx context.Context, flags *pipelineFlags, p *linepipe.Pipeline, matcher *linematch.Matcher, inputs []string) error {
	var mu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	var writeErr error

	err := processInputs(ctx, flags, inputs, func(ctx context.Context, _ int, path string, src linepipe.ChunkSource) error {
		collector := linematch.NewOrderedCollector(matcher, func(m linematch.Match) {
			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				return
			}
			if err := enc.Encode(streamedMatch{Path: path, Match: m}); err != nil {
				writeErr = fmt.Errorf("failed to write match: %w", err)
			}
		})

		res, err := p.Run(ctx, src, collector.Consume)
		if err != nil {
			return err
		}
		logRecordErrors(path, res)
		return nil
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return writeErr
}
