package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/report"
)

var teamsEvent string

var teamsCmd = &cobra.Command{
	Use:   "teams [run-prefix]",
	Short: "Show stored team ratings of a run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTeams,
}

func init() {
	teamsCmd.Flags().StringVar(&teamsEvent, "event", "", "only show teams of this event")
}

func runTeams(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := resolveRun(db, args)
	if err != nil || run == nil {
		return err
	}
	teams, err := db.GetTeamRatings(run.ID)
	if err != nil {
		return fmt.Errorf("get team ratings: %w", err)
	}
	if teamsEvent != "" {
		kept := teams[:0]
		for _, t := range teams {
			if t.Event == teamsEvent {
				kept = append(kept, t)
			}
		}
		teams = kept
	}

	report.PrintRunHeader(os.Stdout, *run)
	report.PrintTeamTable(os.Stdout, teams)
	return nil
}
