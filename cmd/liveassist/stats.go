package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/streamstall/liveassist/internal/config"
	"github.com/streamstall/liveassist/internal/store"
)

var statsJSONOutput bool

var statsCmd = &cobra.Command{
	Use:   "stats [session-id]",
	Short: "Report FAQ hit statistics",
	Long:  "Print FAQ hit statistics for one session, or across all sessions when no id is given, without running the server.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false,
		"Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	}

	stats, err := db.FAQStatistics(context.Background(), sessionID)
	if err != nil {
		return err
	}

	if statsJSONOutput {
		return printJSON(os.Stdout, stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "backend:\t%s\n", db.Backend())
	if sessionID != "" {
		fmt.Fprintf(w, "session:\t%s\n", sessionID)
	}
	fmt.Fprintf(w, "total FAQs:\t%d\n", stats.Statistics.TotalFAQs)
	fmt.Fprintf(w, "total hits:\t%d\n", stats.Statistics.TotalHits)
	fmt.Fprintf(w, "avg hits:\t%.1f\n", stats.Statistics.AvgHits)
	if sessionID == "" {
		fmt.Fprintf(w, "sessions:\t%d\n", stats.Statistics.TotalSessions)
	} else {
		fmt.Fprintf(w, "unused FAQs:\t%d\n", stats.Statistics.UnusedFAQs)
	}
	for _, f := range stats.HotFAQs {
		fmt.Fprintf(w, "hot:\t%s\t%d\n", f.Pattern, f.HitCount)
	}
	return w.Flush()
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
