package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [run-prefix]",
	Short: "Export a stored run's player and team tables as Parquet",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", ".", "output directory")
}

func runExport(_ *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := resolveRun(db, args)
	if err != nil || run == nil {
		return err
	}
	players, err := db.GetPlayerRatings(run.ID)
	if err != nil {
		return fmt.Errorf("get player ratings: %w", err)
	}
	teams, err := db.GetTeamRatings(run.ID)
	if err != nil {
		return fmt.Errorf("get team ratings: %w", err)
	}

	files, err := export.Write(exportOut, run.ID, players, teams)
	if err != nil {
		return fmt.Errorf("export parquet: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s (%d players)\nWrote %s (%d teams)\n",
		files.Players, len(players), files.Teams, len(teams))
	return nil
}
