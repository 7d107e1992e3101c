package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/report"
)

var (
	weightsHistory bool
	weightsFiles   bool
	weightsVersion string
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show the current TIR weight table",
	Long: `Show the latest learned weight table from the weights directory, or the
default table when nothing has been learned. --history lists every table
stored in the database; --version prints one of them. --files lists the
snapshots kept under the weights directory's history.`,
	Args: cobra.NoArgs,
	RunE: runWeights,
}

func init() {
	weightsCmd.Flags().BoolVar(&weightsHistory, "history", false, "list stored weight tables")
	weightsCmd.Flags().BoolVar(&weightsFiles, "files", false, "list weight snapshots in the weights directory")
	weightsCmd.Flags().StringVar(&weightsVersion, "version", "", "show a stored weight table by version")
	weightsCmd.Flags().StringVar(&runWeightsDir, "weights-dir", "", "learned weight directory (default from config)")
}

func runWeights(cmd *cobra.Command, args []string) error {
	if weightsFiles {
		snaps, err := weightStore().Snapshots()
		if err != nil {
			return fmt.Errorf("load weight snapshots: %w", err)
		}
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stdout, "No weight snapshots saved yet.")
			return nil
		}
		metas := make([]model.WeightMeta, len(snaps))
		for i := range snaps {
			metas[i] = snaps[i].Meta
		}
		report.PrintWeightHistory(os.Stdout, metas)
		return nil
	}
	if !weightsHistory && weightsVersion == "" {
		wt, err := weightStore().Latest()
		if err != nil {
			return fmt.Errorf("load latest weights: %w", err)
		}
		report.PrintWeightTable(os.Stdout, wt)
		return nil
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if weightsVersion != "" {
		wt, err := db.GetWeightTable(weightsVersion)
		if err != nil {
			return fmt.Errorf("get weight table: %w", err)
		}
		if wt == nil {
			fmt.Fprintf(os.Stderr, "No weight table with version %q\n", weightsVersion)
			return nil
		}
		report.PrintWeightTable(os.Stdout, *wt)
		return nil
	}

	metas, err := db.ListWeightTables()
	if err != nil {
		return fmt.Errorf("list weight tables: %w", err)
	}
	if len(metas) == 0 {
		fmt.Fprintln(os.Stdout, "No weight tables stored yet.")
		return nil
	}
	report.PrintWeightHistory(os.Stdout, metas)
	return nil
}
