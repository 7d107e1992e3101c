package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/export"
	"github.com/pable/cs-impact/internal/ingest"
	"github.com/pable/cs-impact/internal/logger"
	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/pipeline"
	"github.com/pable/cs-impact/internal/report"
	"github.com/pable/cs-impact/internal/roles"
	"github.com/pable/cs-impact/internal/storage"
	"github.com/pable/cs-impact/internal/weights"
)

var (
	runPlayers     string
	runRounds      string
	runRoles       string
	runRoleWeights string
	runEvent       string
	runWeightsDir  string
	runPinned      string
	runExportDir   string
	runMetricsOut  string
	runSides       bool
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score players and rate teams from a player stats CSV",
	Long: `Run the full pipeline over a player stats CSV: derive metrics, classify roles,
score PIV, aggregate teams, learn feature weights from round outcomes and rate
teams with TIR. Results are stored in the database under a new run id.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPlayers, "players", "", "player stats CSV (required)")
	runCmd.Flags().StringVar(&runRounds, "rounds", "", "round outcome CSV for weight learning and accuracy")
	runCmd.Flags().StringVar(&runRoles, "roles", "", "role assignment CSV")
	runCmd.Flags().StringVar(&runRoleWeights, "role-weights", "", "role metric weight CSV (replaces built-in table)")
	runCmd.Flags().StringVar(&runEvent, "event", "", "event name for rows without an event column")
	runCmd.Flags().StringVar(&runWeightsDir, "weights-dir", "", "learned weight directory (default from config)")
	runCmd.Flags().StringVar(&runPinned, "pinned-weights", "", "use this weight YAML instead of learning")
	runCmd.Flags().StringVar(&runExportDir, "export-dir", "", "also write Parquet tables to this directory")
	runCmd.Flags().StringVar(&runMetricsOut, "metrics-out", "", "write Prometheus textfile metrics to this path")
	runCmd.Flags().BoolVar(&runSides, "sides", false, "print the per-side PIV breakdown")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not persist the run to the database")
	_ = runCmd.MarkFlagRequired("players")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.Named("run")
	rec := diag.NewRecorder(diag.WithNamespace(cfg.MetricsNamespace), diag.WithLogger(logger.Named("diag")))

	players, err := ingest.LoadPlayersFile(runPlayers, runEvent, rec)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	opts := []pipeline.Option{pipeline.WithRecorder(rec)}

	if runRounds != "" {
		outcomes, err := ingest.LoadRoundsFile(runRounds, rec)
		if err != nil {
			return fmt.Errorf("load rounds: %w", err)
		}
		opts = append(opts, pipeline.WithOutcomes(outcomes))
	}
	if runRoles != "" {
		entries, err := ingest.LoadRolesFile(runRoles)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		opts = append(opts, pipeline.WithRoleBook(roles.NewBook(entries)))
	}
	if runRoleWeights != "" {
		rw, err := ingest.LoadRoleWeightsFile(runRoleWeights)
		if err != nil {
			return fmt.Errorf("load role weights: %w", err)
		}
		if missing := rw.Uncovered(); len(missing) > 0 {
			log.Warn(ctx, "role weights incomplete; fallback weights used",
				logger.Int("pairs", len(missing)), logger.Any("uncovered", missing))
		}
		opts = append(opts, pipeline.WithRoleWeights(rw))
	}

	if runPinned != "" {
		wt, err := weights.Load(runPinned)
		if err != nil {
			return fmt.Errorf("load pinned weights: %w", err)
		}
		opts = append(opts, pipeline.WithWeights(wt))
	} else {
		opts = append(opts, pipeline.WithStore(weightStore()))
	}

	res, err := pipeline.New(cfg, opts...).Run(ctx, players)
	if err != nil {
		return err
	}

	if !runNoStore {
		if err := persistRun(res); err != nil {
			return err
		}
		log.Info(ctx, "run stored", logger.String("run_id", res.RunID), logger.String("db", dbPath))
	}
	if runExportDir != "" {
		files, err := export.Write(runExportDir, res.RunID, res.Players, res.Teams)
		if err != nil {
			return fmt.Errorf("export parquet: %w", err)
		}
		log.Info(ctx, "parquet written", logger.String("players", files.Players), logger.String("teams", files.Teams))
	}
	if runMetricsOut != "" {
		if err := rec.WriteTextfile(runMetricsOut); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	report.PrintRunHeader(os.Stdout, runHeader(res))
	report.PrintPlayerTable(os.Stdout, res.Players, "")
	if runSides {
		report.PrintSideTable(os.Stdout, res.Players)
	}
	fmt.Fprintln(os.Stdout)
	report.PrintTeamTable(os.Stdout, res.Teams)
	report.PrintWeightTable(os.Stdout, res.Weights)
	if len(res.Predictions) > 0 {
		fmt.Fprintln(os.Stdout)
		report.PrintPredictionTable(os.Stdout, res.Predictions)
	}
	report.PrintAccuracy(os.Stdout, res.Accuracy.Evaluated, res.Accuracy.Correct)
	fmt.Fprintln(os.Stdout)
	report.PrintDiagnostics(os.Stdout, res.Diagnostics)
	return nil
}

// weightStore returns the file store for learned tables. Before anything
// has been learned it serves the default table.
func weightStore() *weights.FileStore {
	dir := cfg.WeightsDir
	if runWeightsDir != "" {
		dir = runWeightsDir
	}
	learner := weights.NewLearner(cfg.Learner)
	return weights.NewFileStore(dir, func() model.WeightTable {
		return learner.DefaultTable(time.Now().UTC())
	})
}

func runHeader(res *pipeline.Result) storage.Run {
	return storage.Run{
		ID:             res.RunID,
		StartedAt:      res.StartedAt,
		InputPath:      runPlayers,
		PlayerCount:    len(res.Players),
		TeamCount:      len(res.Teams),
		WeightsVersion: res.Weights.Meta.Version,
		WeightsSource:  res.Weights.Meta.Source,
		Evaluated:      res.Accuracy.Evaluated,
		Correct:        res.Accuracy.Correct,
	}
}

func persistRun(res *pipeline.Result) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InsertRun(runHeader(res)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := db.InsertWeightTable(res.Weights); err != nil {
		return fmt.Errorf("insert weight table: %w", err)
	}
	if err := db.InsertPlayerRatings(res.RunID, res.Players); err != nil {
		return fmt.Errorf("insert player ratings: %w", err)
	}
	if err := db.InsertTeamRatings(res.RunID, res.Teams); err != nil {
		return fmt.Errorf("insert team ratings: %w", err)
	}
	if err := db.InsertPredictions(res.RunID, res.Predictions); err != nil {
		return fmt.Errorf("insert predictions: %w", err)
	}
	if err := db.InsertDiagnostics(res.RunID, res.Diagnostics); err != nil {
		return fmt.Errorf("insert diagnostics: %w", err)
	}
	return nil
}
