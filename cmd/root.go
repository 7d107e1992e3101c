package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/logger"
	"github.com/pable/cs-impact/internal/storage"
)

var (
	dbPath     string
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "csimpact",
	Short: "CS2 player impact and team rating tool",
	Long: `Score CS2 players with the Player Impact Value (PIV), aggregate them into teams,
learn feature weights from round outcomes and rate teams with the Team Impact Rating (TIR).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run between
// pipeline stages.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite database (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (falls back to $CSIMPACT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(weightsCmd)
	rootCmd.AddCommand(playerCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.Init(os.Stderr)
	c, err := config.Load(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	cfg = c
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logger.SetLevelString(level)
}

func openDB() (*storage.DB, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// resolveRun returns the run named by the optional prefix argument, or the
// latest run when none is given. A nil run with a nil error means nothing matched.
func resolveRun(db *storage.DB, args []string) (*storage.Run, error) {
	if len(args) == 0 {
		r, err := db.LatestRun()
		if err != nil {
			return nil, fmt.Errorf("query latest run: %w", err)
		}
		if r == nil {
			fmt.Fprintln(os.Stderr, "No runs stored yet. Run 'csimpact run --players <file.csv>' to add one.")
		}
		return r, nil
	}
	r, err := db.GetRunByPrefix(args[0])
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if r == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", args[0])
	}
	return r, nil
}
