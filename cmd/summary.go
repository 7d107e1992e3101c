package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/storage"
)

// summaryCmd is the cobra command for displaying a high-level database overview.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display aggregate statistics about everything stored in the database:
run count, date range, events, teams and players seen, stored weight tables,
and the players with the highest mean PIV across runs.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return printSummary(os.Stdout, db)
}

func printSummary(w io.Writer, db *storage.DB) error {
	ov, err := db.GetOverview()
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}
	if ov.Runs == 0 {
		fmt.Fprintln(w, "No runs stored yet. Run 'csimpact run --players <file.csv>' to add one.")
		return nil
	}

	fmt.Fprintf(w, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(w, "  Runs stored    : %d\n", ov.Runs)
	fmt.Fprintf(w, "  Date range     : %s → %s\n", ov.FirstRun, ov.LatestRun)
	fmt.Fprintf(w, "  Events         : %d\n", ov.Events)
	fmt.Fprintf(w, "  Teams seen     : %d\n", ov.Teams)
	fmt.Fprintf(w, "  Players seen   : %d\n", ov.Players)
	fmt.Fprintf(w, "  Weight tables  : %d (%d learned)\n", ov.WeightTables, ov.LearnedTables)

	players, err := db.GetTopPlayers(10)
	if err != nil {
		return fmt.Errorf("get top players: %w", err)
	}
	fmt.Fprintf(w, "\n--- Highest Mean PIV ---\n\n")
	pt := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	pt.Header("NAME", "STEAM ID", "RUNS", "AVG PIV", "MAX PIV")
	for _, p := range players {
		pt.Append(
			p.Name,
			p.SteamID,
			fmt.Sprintf("%d", p.Runs),
			fmt.Sprintf("%.3f", p.AvgPIV),
			fmt.Sprintf("%.3f", p.MaxPIV),
		)
	}
	pt.Render()
	return nil
}
