package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands for the email queue",
	Long:  "Inspect and recover the email queue: stats, retry failed messages, cancel queued messages, clean up old entries.",
}

// init registers admin subcommands.
func init() {
	adminCmd.AddCommand(adminStatsCmd)
	adminCmd.AddCommand(adminRetryCmd)
	adminCmd.AddCommand(adminCancelCmd)
	adminCmd.AddCommand(adminCleanupCmd)
	rootCmd.AddCommand(adminCmd)
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print queue counts and recent failures as JSON",
	Run:   runAdminStats,
}

var adminRetryCmd = &cobra.Command{
	Use:   "retry [id ...]",
	Short: "Reset failed messages to pending",
	Long:  "Reset failed messages to pending so the next processor run picks them up. With no arguments every failed message is retried.",
	Run:   runAdminRetry,
}

var adminCancelCmd = &cobra.Command{
	Use:   "cancel id [id ...]",
	Short: "Cancel pending or in-flight messages",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAdminCancel,
}

var adminCleanupCmd = &cobra.Command{
	Use:   "cleanup [days]",
	Short: "Delete old sent and cancelled messages",
	Long:  "Delete sent and cancelled messages older than the given number of days (default 30). Failed messages are kept for audit and never deleted. Intended for cron.",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAdminCleanup,
}

func runAdminStats(_ *cobra.Command, _ []string) {
	d := mustBuildAdminDeps()
	defer d.close()

	stats, err := d.emails.Stats(context.Background())
	if err != nil {
		d.log.Fatalf("Failed to read queue stats: %v", err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		d.log.Fatalf("Failed to encode stats: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}

func runAdminRetry(_ *cobra.Command, args []string) {
	d := mustBuildAdminDeps()
	defer d.close()

	retried, err := d.emails.RetryFailed(context.Background(), args)
	if err != nil {
		d.log.Fatalf("Failed to retry emails: %v", err)
	}
	fmt.Fprintf(os.Stdout, "retried %d message(s)\n", retried)
}

func runAdminCancel(_ *cobra.Command, args []string) {
	d := mustBuildAdminDeps()
	defer d.close()

	cancelled, err := d.emails.Cancel(context.Background(), args)
	if err != nil {
		d.log.Fatalf("Failed to cancel emails: %v", err)
	}
	fmt.Fprintf(os.Stdout, "cancelled %d message(s)\n", cancelled)
}

func runAdminCleanup(_ *cobra.Command, args []string) {
	d := mustBuildAdminDeps()
	defer d.close()

	days := 0
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			d.log.Fatalf("Invalid days argument: %s", args[0])
		}
		days = parsed
	}

	deleted, err := d.emails.Cleanup(context.Background(), days)
	if err != nil {
		d.log.Fatalf("Failed to clean up emails: %v", err)
	}
	fmt.Fprintf(os.Stdout, "deleted %d message(s)\n", deleted)
}

func mustBuildAdminDeps() *deps {
	d, err := buildDeps(false)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	return d
}
