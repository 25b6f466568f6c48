package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// TestBuildOptions verifies flags are mapped onto pipeline options.
func TestBuildOptions(t *testing.T) {
	flags := &pipelineFlags{
		threads:        3,
		queueCapacity:  linepipe.Unbounded,
		maxQueuedBytes: 1 << 20,
		maxLineLength:  4096,
		encoding:       "iso-8859-1",
		dropTrailing:   true,
	}

	opts := buildOptions(flags)
	if err := opts.Validate(); err != nil {
		t.Fatalf("Expected valid options, got %v", err)
	}

	want := linepipe.Options{
		Terminator:     linepipe.CRLF,
		Encoding:       "iso-8859-1",
		PoolSize:       3,
		QueueCapacity:  linepipe.Unbounded,
		MaxQueuedBytes: 1 << 20,
		MaxLineLength:  4096,
		Trailing:       linepipe.TrailingDrop,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("unexpected options diff (want->got):\n%s", diff)
	}
}

// TestInputsFromArgs verifies standard input is used without arguments.
func TestInputsFromArgs(t *testing.T) {
	if got := inputsFromArgs(nil); len(got) != 1 || got[0] != stdinName {
		t.Errorf("Expected standard input, got %v", got)
	}
	if got := inputsFromArgs([]string{"a", "b"}); len(got) != 2 {
		t.Errorf("Expected 2 inputs, got %v", got)
	}
}

// TestProcessInputs verifies every file is processed through a pipeline.
func TestProcessInputs(t *testing.T) {
	dir := t.TempDir()
	contents := map[string]string{
		"a.txt": "one\r\ntwo\r\n",
		"b.txt": "three",
		"c.txt": "",
	}

	var inputs []string
	for name, content := range contents {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, path)
	}

	flags := &pipelineFlags{chunkSize: 2, threads: 2, queueCapacity: 4, encoding: "utf-8", parallelFiles: 2}
	p, err := linepipe.New(buildOptions(flags))
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	lines := make(map[string]uint64)
	err = processInputs(context.Background(), flags, inputs, func(ctx context.Context, _ int, path string, src linepipe.ChunkSource) error {
		res, err := p.Run(ctx, src, func(context.Context, linepipe.Line) error { return nil })
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		lines[filepath.Base(path)] = res.Lines
		return nil
	})
	if err != nil {
		t.Fatalf("processInputs failed: %v", err)
	}

	want := map[string]uint64{"a.txt": 2, "b.txt": 1, "c.txt": 0}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("unexpected line counts (want->got):\n%s", diff)
	}
}

// TestProcessInputsMissingFile verifies a missing input fails the command.
func TestProcessInputsMissingFile(t *testing.T) {
	flags := &pipelineFlags{parallelFiles: 1}
	missing := filepath.Join(t.TempDir(), "missing.txt")

	err := processInputs(context.Background(), flags, []string{missing}, func(context.Context, int, string, linepipe.ChunkSource) error {
		t.Error("Expected handler not to be called")
		return nil
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
