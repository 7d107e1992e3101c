package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/report"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the ratings database",
	Long: `Run an arbitrary SQL query against the ratings database and print results as a table.

Schema overview:
  runs(id, started_at, input_path, player_count, team_count, weights_version,
    weights_source, accuracy_evaluated, accuracy_correct)
  player_ratings(run_id, steam_id, event, name, team, kills, deaths, assists, kd,
    hs_percentage, first_kill_success, flash_efficiency, utility_effectiveness,
    consistency, impact_score, t_role, ct_role, is_igl, primary_role, role_source,
    rcs, icf, sc, osm, piv, t_piv, ct_piv, ...)
  team_ratings(run_id, event, team, player_count, piv_mean, piv_max, piv_min,
    piv_spread, role_diversity, role_balance, tir, tir_normalized, tir_display)
  team_features(run_id, event, team, feature, mean, scaled)
  weight_tables(version, fit_date, sample_count, source, alpha)
  weight_entries(version, feature, weight)
  match_predictions(run_id, event, team_a, team_b, team_a_tir, team_b_tir,
    team_a_win_prob, predicted_winner, actual_winner, is_correct)
  diagnostics(run_id, stage, kind, count, detail)

Roles are stored as integers: 1 AWP, 2 Lurker, 3 Support, 4 Spacetaker,
5 Anchor, 6 Rotator, 7 IGL.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(query)
	if err != nil {
		return err
	}
	report.PrintRaw(os.Stdout, cols, rows)
	return nil
}
