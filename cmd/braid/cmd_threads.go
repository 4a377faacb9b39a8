// ABOUTME: CLI commands for listing and searching a session's threads
// ABOUTME: Tabular output via text/tabwriter

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

var threadsCmd = &cobra.Command{
	Use:   "threads <session-id>",
	Short: "List all threads in a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreads,
}

var (
	searchStatus      string
	searchParticipant string
	searchLimit       int
)

var searchCmd = &cobra.Command{
	Use:   "search <session-id> [query]",
	Short: "Search a session's threads by text, status or participant",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "filter by status (active, archived, closed)")
	searchCmd.Flags().StringVar(&searchParticipant, "participant", "", "filter by participant id")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results")
}

func runThreads(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	threads := svc.GetSessionThreads(ctx, args[0])
	if len(threads) == 0 {
		fmt.Println("no threads found")
		return nil
	}

	printThreadTable(threads)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()

	q := store.SearchQuery{
		Status:      store.ThreadStatus(searchStatus),
		Participant: searchParticipant,
		Limit:       searchLimit,
	}
	if len(args) > 1 {
		q.Text = args[1]
	}

	result, err := svc.SearchThreads(context.Background(), args[0], q)
	if err != nil {
		return err
	}

	if result.TotalCount == 0 {
		fmt.Println("no threads matched")
		return nil
	}

	printThreadTable(result.Threads)
	fmt.Printf("\n%d threads in %s\n", result.TotalCount, result.Metadata.Elapsed.Round(time.Microsecond))
	return nil
}

func printThreadTable(threads []*store.Thread) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tMSGS\tPARTICIPANTS\tLAST ACTIVITY")
	for _, t := range threads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			t.ID,
			truncate(t.Title, 40),
			t.Status,
			t.MessageCount,
			len(t.Participants),
			t.LastActivityAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
