package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rocketapi/internal/logger"
	"rocketapi/internal/otel"
	"rocketapi/internal/replay"
)

var (
	baseURL     string
	inputFile   string
	concurrency int
	shuffle     bool
	timeout     time.Duration
	logLevel    string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Post recorded rocket telemetry to the API",
		Long: `Reads newline-delimited telemetry messages and posts them to /messages.
Messages of one channel are sent in file order, channels are sent in parallel.

Example:
  replay --url http://localhost:8080 --file telemetry.ndjson --concurrency 8
  cat telemetry.ndjson | replay --shuffle`,
		SilenceUsage: true,
		RunE:         runReplay,
	}

	const defaultConcurrency = 4
	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:8080", "Base URL of the API")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "-", "NDJSON input file, - for stdin")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", defaultConcurrency, "Channels posted in parallel")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle messages within each channel")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout per request")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}

func runReplay(cmd *cobra.Command, _ []string) error {
	log, err := logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, time.UTC)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log.Named("otel"))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	in, err := openInput(cmd)
	if err != nil {
		return err
	}
	defer in.Close()

	channels, err := replay.Read(in)
	if err != nil {
		return err
	}

	client := replay.NewClient(baseURL, timeout, log)
	stats, err := client.Run(ctx, channels, replay.Options{Concurrency: concurrency, Shuffle: shuffle})
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		log.Error("some messages were rejected", zap.Int64("failed", stats.Failed))
		return fmt.Errorf("%d of %d messages failed", stats.Failed, stats.Failed+stats.Sent)
	}
	return nil
}

func openInput(cmd *cobra.Command) (io.ReadCloser, error) {
	if inputFile == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
