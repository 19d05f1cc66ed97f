package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pixelheap/imgproc/internal/config"
	"github.com/pixelheap/imgproc/internal/pipeline"
	"github.com/pixelheap/imgproc/internal/storage"
	"github.com/pixelheap/imgproc/internal/telemetry"
)

const version = "0.3.0"

var (
	cfg     = config.Load()
	logger  = log.New(os.Stderr, "[imgproc] ", log.LstdFlags|log.Lmsgprefix)
	verbose bool

	traceShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:           "imgproc",
	Short:         "Batch image conversion, background removal and grid tiling",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := pipeline.Startup(); err != nil {
			return fmt.Errorf("initialize image engine: %w", err)
		}

		shutdown, err := telemetry.SetupTracing(cmd.Context(), telemetry.TraceConfig{
			ServiceName:    "imgproc",
			ServiceVersion: version,
			Exporter:       cfg.Trace.Exporter,
			OTLPEndpoint:   cfg.Trace.OTLPEndpoint,
			OTLPInsecure:   cfg.Trace.OTLPInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		traceShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if traceShutdown != nil {
			if err := traceShutdown(cmd.Context()); err != nil {
				logger.Printf("trace exporter shutdown failed err=%v", err)
			}
		}
		pipeline.Shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-file progress")
}

// storeConfig adapts the loaded configuration for jobs whose input or output
// is an s3://bucket/prefix location.
func storeConfig() storage.Config {
	return storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
