// ABOUTME: Worker command runs ingestion workers against the shared queue
// ABOUTME: Stops cleanly on SIGINT or SIGTERM once in-flight jobs return
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/ingest"
	"github.com/harper/bookbuddy/internal/queue"
)

var workerCount int

// NewWorkerCmd creates worker command
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run ingestion workers",
		Long: `Run ingestion workers that parse, chunk, and embed uploaded books.

Use with the Redis queue (BOOKBUDDY_QUEUE=redis) so uploads from other
processes reach the workers. With the in-process queue, uploads are
ingested by the upload command itself.

Examples:
  BOOKBUDDY_QUEUE=redis bookbuddy worker
  bookbuddy worker --workers 4`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}

	cmd.Flags().IntVar(&workerCount, "workers", 0, "Number of workers (default from config)")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.QueueBackend == "memory" {
		a.log.Warn("worker is using the in-process queue; uploads from other processes will not reach it")
	}
	if r, ok := a.queue.(*queue.Redis); ok {
		if err := r.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	}

	workers := a.cfg.Workers
	if workerCount > 0 {
		workers = workerCount
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Running %d ingestion worker(s), Ctrl-C to stop\n", workers)
	}
	runWorkers(ctx, a, workers)
	return nil
}

func runWorkers(ctx context.Context, a *app, workers int) {
	ingest.NewScheduler(a.queue, a.pipeline, workers).Run(ctx)
}
