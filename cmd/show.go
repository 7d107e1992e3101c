package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/report"
)

var (
	showPlayer string
	showTeam   string
)

var showCmd = &cobra.Command{
	Use:   "show [run-prefix]",
	Short: "Show stored player ratings of a run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showPlayer, "player", "", "highlight player by name or steam id")
	showCmd.Flags().StringVar(&showTeam, "team", "", "only show players of this team")
}

func runShow(cmd *cobra.Command, args []string) error {
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
	if showTeam != "" {
		kept := players[:0]
		for _, p := range players {
			if strings.EqualFold(p.Team, showTeam) {
				kept = append(kept, p)
			}
		}
		players = kept
	}
	counts, err := db.GetDiagnostics(run.ID)
	if err != nil {
		return fmt.Errorf("get diagnostics: %w", err)
	}

	report.PrintRunHeader(os.Stdout, *run)
	if len(players) == 0 {
		fmt.Fprintln(os.Stdout, "No players match.")
	} else {
		report.PrintPlayerTable(os.Stdout, players, showPlayer)
	}
	fmt.Fprintln(os.Stdout)
	report.PrintDiagnostics(os.Stdout, counts)
	return nil
}
