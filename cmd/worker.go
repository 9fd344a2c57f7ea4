package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the queue processor without the HTTP server",
	Long:  "Run a standalone worker that claims due messages from the queue and delivers them. Safe to run alongside serve; claims are atomic.",
	Run:   runWorker,
}

// init registers the worker command.
func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker runs only the background processor until a shutdown signal.
func runWorker(_ *cobra.Command, _ []string) {
	d, err := buildDeps(true)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer d.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.processor.Start(ctx); err != nil {
		d.log.Fatalf("Failed to start queue processor: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	d.log.Info("Received shutdown signal, stopping worker...")

	d.processor.Stop()
	d.log.Info("Worker stopped")
}
