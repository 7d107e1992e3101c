package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/cs-impact/internal/report"
	"github.com/pable/cs-impact/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cHeader   = color.New(color.FgCyan, color.Bold)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(_ *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cGreeting.Println("csimpact shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("csimpact")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		cmd, args := tokens[0], tokens[1:]

		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "list":
			shellList(db)
		case "summary":
			if err := printSummary(os.Stdout, db); err != nil {
				cError.Fprintf(os.Stderr, "error: %v\n", err)
			}
		case "show":
			var focus string
			var rest []string
			for i := 0; i < len(args); i++ {
				if args[i] == "--player" && i+1 < len(args) {
					focus = args[i+1]
					i++
					continue
				}
				rest = append(rest, args[i])
			}
			shellShow(db, rest, focus)
		case "teams":
			shellTeams(db, args)
		case "predict":
			shellPredict(db, args)
		case "player":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: player <name|steamid> [...]")
				continue
			}
			shellPlayer(db, args)
		default:
			cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", cmd)
		}
	}
	return scanner.Err()
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"list", "list all stored runs"},
		{"summary", "database overview"},
		{"show [run-prefix]", "player ratings of a run (latest by default)"},
		{"show [run-prefix] --player <name>", "same, highlighting one player"},
		{"teams [run-prefix]", "team ratings of a run"},
		{"predict [run-prefix]", "head-to-head predictions of a run"},
		{"player <name|steamid> [...]", "cross-run PIV history"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-38s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

func shellList(db *storage.DB) {
	runs, err := db.ListRuns()
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(runs) == 0 {
		cMuted.Println("No runs stored yet.")
		return
	}
	report.PrintRunList(os.Stdout, runs)
}

// shellRun resolves the run for a shell command, reporting problems inline.
func shellRun(db *storage.DB, args []string) *storage.Run {
	run, err := resolveRun(db, args)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return nil
	}
	return run
}

func shellShow(db *storage.DB, args []string, focus string) {
	run := shellRun(db, args)
	if run == nil {
		return
	}
	players, err := db.GetPlayerRatings(run.ID)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	report.PrintRunHeader(os.Stdout, *run)
	report.PrintPlayerTable(os.Stdout, players, focus)
}

func shellTeams(db *storage.DB, args []string) {
	run := shellRun(db, args)
	if run == nil {
		return
	}
	teams, err := db.GetTeamRatings(run.ID)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	report.PrintRunHeader(os.Stdout, *run)
	report.PrintTeamTable(os.Stdout, teams)
}

func shellPredict(db *storage.DB, args []string) {
	run := shellRun(db, args)
	if run == nil {
		return
	}
	preds, err := db.GetPredictions(run.ID)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	report.PrintRunHeader(os.Stdout, *run)
	if len(preds) > 0 {
		report.PrintPredictionTable(os.Stdout, preds)
	}
	report.PrintAccuracy(os.Stdout, run.Evaluated, run.Correct)
}

func shellPlayer(db *storage.DB, args []string) {
	for _, key := range args {
		hist, err := db.GetPlayerHistory(key)
		if err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if len(hist) == 0 {
			cWarn.Fprintf(os.Stderr, "no ratings for %q\n", key)
			continue
		}
		fmt.Fprintln(os.Stdout)
		cHeader.Fprintf(os.Stdout, "--- %s ---\n", hist[len(hist)-1].Name)
		report.PrintPlayerHistory(os.Stdout, hist)
	}
}
