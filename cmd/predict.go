package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/report"
	"github.com/pable/cs-impact/internal/tir"
)

var (
	predictTeamA string
	predictTeamB string
	predictEvent string
)

var predictCmd = &cobra.Command{
	Use:   "predict [run-prefix]",
	Short: "Show head-to-head predictions of a run, or predict one matchup",
	Long: `Without --team-a/--team-b, print every stored prediction of the run with the
accuracy against head-to-head rounds. With both flags, compute the win
probability of team A over team B from their stored ratings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictTeamA, "team-a", "", "first team of an ad-hoc matchup")
	predictCmd.Flags().StringVar(&predictTeamB, "team-b", "", "second team of an ad-hoc matchup")
	predictCmd.Flags().StringVar(&predictEvent, "event", "", "event the matchup teams belong to")
}

func runPredict(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := resolveRun(db, args)
	if err != nil || run == nil {
		return err
	}

	if predictTeamA != "" || predictTeamB != "" {
		if predictTeamA == "" || predictTeamB == "" {
			return fmt.Errorf("predict matchup: both --team-a and --team-b are required")
		}
		teams, err := db.GetTeamRatings(run.ID)
		if err != nil {
			return fmt.Errorf("get team ratings: %w", err)
		}
		a, err := findTeam(teams, predictTeamA)
		if err != nil {
			return err
		}
		b, err := findTeam(teams, predictTeamB)
		if err != nil {
			return err
		}
		r := tir.New(cfg.TIR)
		p := r.WinProbability(a.TIRNormalized, b.TIRNormalized)
		winner := a.Team
		if p < 0.5 {
			winner = b.Team
		}
		fmt.Fprintf(os.Stdout, "%s (TIR %.1f) vs %s (TIR %.1f): P(%s wins) = %.1f%%, predicted winner %s\n",
			a.Team, a.TIRDisplay, b.Team, b.TIRDisplay, a.Team, 100*p, winner)
		return nil
	}

	preds, err := db.GetPredictions(run.ID)
	if err != nil {
		return fmt.Errorf("get predictions: %w", err)
	}
	report.PrintRunHeader(os.Stdout, *run)
	if len(preds) == 0 {
		fmt.Fprintln(os.Stdout, "No predictions stored for this run.")
	} else {
		report.PrintPredictionTable(os.Stdout, preds)
	}
	report.PrintAccuracy(os.Stdout, run.Evaluated, run.Correct)
	return nil
}

func findTeam(teams []model.TeamRecord, name string) (*model.TeamRecord, error) {
	for i := range teams {
		t := &teams[i]
		if !strings.EqualFold(t.Team, name) {
			continue
		}
		if predictEvent == "" || t.Event == predictEvent {
			return t, nil
		}
	}
	return nil, fmt.Errorf("team %q not found in run", name)
}
