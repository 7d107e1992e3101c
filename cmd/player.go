package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/report"
)

// playerCmd shows how one or more players' ratings moved across stored runs.
var playerCmd = &cobra.Command{
	Use:   "player <name|steamid> [<name|steamid>...]",
	Short: "Cross-run PIV history for one or more players",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlayer,
}

func runPlayer(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, key := range args {
		hist, err := db.GetPlayerHistory(key)
		if err != nil {
			return fmt.Errorf("query history for %s: %w", key, err)
		}
		if len(hist) == 0 {
			fmt.Fprintf(os.Stderr, "No ratings found for %q\n", key)
			continue
		}
		fmt.Fprintf(os.Stdout, "\n%s  (%d runs)\n\n", hist[len(hist)-1].Name, len(hist))
		report.PrintPlayerHistory(os.Stdout, hist)
	}
	return nil
}
