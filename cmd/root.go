package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "email-queue",
	Short: "Email queue microservice",
	Long:  "A reliable asynchronous email delivery service with durable queueing, retry with backoff, and operational recovery tooling.",
}

// Execute runs the root Cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
