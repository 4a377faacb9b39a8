// ABOUTME: CLI commands for session statistics and recent activity
// ABOUTME: Aggregated counts plus the newest activity records

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Show aggregate statistics for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity <session-id>",
	Short: "Show recent thread activity for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivity,
}

func init() {
	activityCmd.Flags().IntVar(&activityLimit, "limit", 20, "max activity records")
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()

	stats := svc.GetThreadStats(context.Background(), args[0])

	fmt.Printf("threads:   %d total (%d active, %d archived, %d closed)\n",
		stats.TotalThreads, stats.ActiveThreads, stats.ArchivedThreads, stats.ClosedThreads)
	fmt.Printf("messages:  %d total, %d unread\n", stats.TotalMessages, stats.TotalUnread)

	if stats.MostActiveThread != nil {
		fmt.Printf("most active: %s (%d msgs, %s)\n",
			stats.MostActiveThread.Title,
			stats.MostActiveThread.MessageCount,
			stats.MostActiveThread.ID,
		)
	}

	if len(stats.RecentActivity) > 0 {
		fmt.Println("\nrecent activity:")
		printActivity(stats.RecentActivity)
	}
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()

	activities := svc.GetRecentActivity(context.Background(), args[0], activityLimit)
	if len(activities) == 0 {
		fmt.Println("no activity found")
		return nil
	}

	printActivity(activities)
	return nil
}

func printActivity(activities []*store.Activity) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, act := range activities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			act.Timestamp.Local().Format("2006-01-02 15:04:05"),
			act.Type,
			act.UserID,
			act.ThreadID,
		)
	}
	w.Flush()
}
