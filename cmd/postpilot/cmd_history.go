package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postpilot/internal/history"
)

// historyCmd inspects the recency cache
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recently published items",
	Long: `Prints the recency history, newest first. Items listed here are
skipped by selection on future runs.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	store := history.NewStore(cfg.History.Path, logger)
	entries := store.Load()
	if len(entries) == 0 {
		fmt.Printf("no history at %s\n", store.Path())
		return nil
	}

	fmt.Printf("%d of %d slots used (%s)\n\n", len(entries), history.MaxEntries, store.Path())
	for i, e := range entries {
		fmt.Printf("%2d. %s\n", i+1, e.Title)
		if e.URL != "" {
			fmt.Printf("    %s\n", e.URL)
		}
		fmt.Printf("    recorded %s\n", e.RecordedAt.Format("2006-01-02 15:04 MST"))
	}
	return nil
}
