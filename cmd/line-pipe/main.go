package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfenske89/go-linepipe/pkg/linepipe"
)

// pipelineFlags holds command-line flags shared by every command
type pipelineFlags struct {
	chunkSize      int
	threads        int
	queueCapacity  int
	maxQueuedBytes int64
	maxLineLength  int64
	encoding       string
	dropTrailing   bool
	parallelFiles  int
	pretty         bool
	logLevel       string
}

// grepFlags holds command-line flags for the grep command
type grepFlags struct {
	pattern     string
	isRegex     bool
	ignoreCase  bool
	stripMarkup bool
	maxWidth    int
	ordered     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := createRootCmd(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// createRootCmd creates the root command with its subcommands
func createRootCmd(ctx context.Context) *cobra.Command {
	flags := &pipelineFlags{}

	rootCmd := &cobra.Command{
		Use:   "line-pipe",
		Short: "CLI tool for concurrent line processing",
		Long: `High-throughput CLI tool splitting CRLF-delimited input into lines and
processing them on a pool of concurrent workers.`,
		Example: `  # Count lines of several files, two at a time
  line-pipe count --parallel-files 2 a.log b.log c.log

  # Search standard input
  cat server.log | line-pipe grep -p "timeout"

  # Stream regex matches as NDJSON in input order
  line-pipe grep -p "^ERR [0-9]+" --regex --ordered server.log

  # Enable logging for debugging
  line-pipe count --log-level debug server.log`,
		SilenceUsage: true,
	}

	setupPipelineFlags(rootCmd, flags)
	rootCmd.AddCommand(createCountCmd(ctx, flags))
	rootCmd.AddCommand(createGrepCmd(ctx, flags))

	return rootCmd
}

// setupPipelineFlags configures the flags shared by all commands
func setupPipelineFlags(cmd *cobra.Command, flags *pipelineFlags) {
	defaults := linepipe.DefaultOptions()

	// performance options
	cmd.PersistentFlags().IntVar(&flags.chunkSize, "chunk-size", linepipe.DefaultChunkSize, "Number of bytes read per chunk")
	cmd.PersistentFlags().IntVarP(&flags.threads, "threads", "t", runtime.NumCPU(), "Number of consumer workers per input")
	cmd.PersistentFlags().IntVar(&flags.queueCapacity, "queue-capacity", defaults.QueueCapacity, "Maximum number of queued lines, -1 for unbounded")
	cmd.PersistentFlags().IntVar(&flags.parallelFiles, "parallel-files", 1, "Number of inputs processed concurrently")

	// limits
	cmd.PersistentFlags().Int64Var(&flags.maxQueuedBytes, "max-queued-bytes", 0, "Abort when queued text exceeds this many bytes (0 for no limit)")
	cmd.PersistentFlags().Int64Var(&flags.maxLineLength, "max-line-length", 0, "Abort when a line exceeds this many bytes (0 for no limit)")

	// decoding options
	cmd.PersistentFlags().StringVar(&flags.encoding, "encoding", defaults.Encoding, "Text encoding of the input (IANA name)")
	cmd.PersistentFlags().BoolVar(&flags.dropTrailing, "drop-trailing", false, "Discard an unterminated last line")

	// output options
	cmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "Pretty-print JSON output")

	// logging options
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Set logging level (disabled, error, warn, info, debug, trace)")
}

// createCountCmd creates the count command
func createCountCmd(ctx context.Context, flags *pipelineFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count [files...]",
		Short: "Count lines and bytes of the inputs",
		Long: `Count the lines and bytes of every input. Reads standard input when no
file is given, or for the file name "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(flags.logLevel)
			return runCount(ctx, flags, inputsFromArgs(args))
		},
	}
}

// createGrepCmd creates the grep command with its flags
func createGrepCmd(ctx context.Context, flags *pipelineFlags) *cobra.Command {
	gflags := &grepFlags{}

	grepCmd := &cobra.Command{
		Use:   "grep [files...]",
		Short: "Search the lines of the inputs",
		Long: `Search every line of the inputs using plain text or regex matching.
Reads standard input when no file is given, or for the file name "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(flags.logLevel)
			return runGrep(ctx, flags, gflags, inputsFromArgs(args))
		},
	}

	grepCmd.Flags().StringVarP(&gflags.pattern, "pattern", "p", "", "Search pattern (required)")
	grepCmd.Flags().BoolVar(&gflags.isRegex, "regex", false, "Treat pattern as regular expression")
	grepCmd.Flags().BoolVarP(&gflags.ignoreCase, "ignore-case", "i", false, "Case-insensitive search")
	grepCmd.Flags().BoolVar(&gflags.stripMarkup, "strip-markup", false, "Remove HTML tags from lines before matching")
	grepCmd.Flags().IntVar(&gflags.maxWidth, "max-width", 0, "Truncate reported lines to this many characters")
	grepCmd.Flags().BoolVar(&gflags.ordered, "ordered", false, "Stream matches as NDJSON in input order")

	if err := grepCmd.MarkFlagRequired("pattern"); err != nil {
		log.Err(err).Msg("failed to mark pattern flag as required")
	}

	return grepCmd
}

// buildOptions constructs pipeline options from command-line flags
func buildOptions(flags *pipelineFlags) linepipe.Options {
	opts := linepipe.DefaultOptions()
	opts.PoolSize = flags.threads
	opts.QueueCapacity = flags.queueCapacity
	opts.MaxQueuedBytes = flags.maxQueuedBytes
	opts.MaxLineLength = flags.maxLineLength
	opts.Encoding = flags.encoding
	if flags.dropTrailing {
		opts.Trailing = linepipe.TrailingDrop
	}
	return opts
}

// inputsFromArgs returns the inputs to process, standard input when none are given
func inputsFromArgs(args []string) []string {
	if len(args) == 0 {
		return []string{stdinName}
	}
	return args
}

// outputJSON marshals and outputs a value as JSON
func outputJSON(output any, pretty bool) error {
	var jsonData []byte
	var err error

	if pretty {
		jsonData, err = json.MarshalIndent(output, "", "  ")
	} else {
		jsonData, err = json.Marshal(output)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

// configureLogging sets up zerolog based on the specified level
func configureLogging(level string) {
	level = strings.ToLower(level)

	if level == "disabled" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return
	}

	// use a standard error console writer to keep the command output processable
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		log.Warn().Str("log_level", level).Msg("unknown log level - falling back to WARN")
	}
}
