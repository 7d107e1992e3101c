package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintRunHeader prints a one-line summary header for a run.
func PrintRunHeader(w io.Writer, r storage.Run) {
	fmt.Fprintf(w, "\nRun: %s  |  Started: %s  |  Players: %d  |  Teams: %d  |  Weights: %s (%s)\n\n",
		r.ID, r.StartedAt.Format(time.DateTime), r.PlayerCount, r.TeamCount, r.WeightsVersion, r.WeightsSource)
}

// PrintRunList prints stored runs, one per row.
func PrintRunList(w io.Writer, runs []storage.Run) {
	table := newTable(w)
	table.Header("ID", "STARTED", "INPUT", "PLAYERS", "TEAMS", "WEIGHTS", "SOURCE", "ACCURACY")
	for _, r := range runs {
		acc := "—"
		if r.Evaluated > 0 {
			acc = fmt.Sprintf("%d/%d", r.Correct, r.Evaluated)
		}
		table.Append(
			shortID(r.ID),
			r.StartedAt.Format(time.DateTime),
			r.InputPath,
			strconv.Itoa(r.PlayerCount),
			strconv.Itoa(r.TeamCount),
			r.WeightsVersion,
			string(r.WeightsSource),
			acc,
		)
	}
	table.Render()
}

// PrintPlayerTable prints scored players. If focus is non-empty, rows whose
// name or steam id equals it are marked with ">".
func PrintPlayerTable(w io.Writer, players []model.PlayerRecord, focus string) {
	table := newTable(w)
	table.Header(
		" ", "NAME", "TEAM", "EVENT", "ROLE", "T/CT", "SRC",
		"K/D", "FKS%", "FLASH", "UE", "CONS", "IMPACT",
		"RCS", "ICF", "SC", "PIV", "T_PIV", "CT_PIV",
	)
	for i := range players {
		p := &players[i]
		marker := " "
		if focus != "" && (p.Name == focus || p.SteamID == focus) {
			marker = ">"
		}
		d := &p.Derived
		table.Append(
			marker,
			p.Name,
			p.Team,
			p.Event,
			p.Roles.Primary.String(),
			p.Roles.TRole.String()+"/"+p.Roles.CTRole.String(),
			string(p.Roles.Source),
			fmt.Sprintf("%.2f", d.KD),
			fmt.Sprintf("%.0f%%", 100*d.FirstKillSuccess),
			fmt.Sprintf("%.2f", d.FlashEfficiency),
			fmt.Sprintf("%.2f", d.UtilityEffectiveness),
			fmt.Sprintf("%.2f", d.Consistency),
			fmt.Sprintf("%.2f", d.ImpactScore),
			fmt.Sprintf("%.2f", p.Score.RCS),
			fmt.Sprintf("%.2f", p.Score.ICF),
			fmt.Sprintf("%.2f", p.Score.SC),
			fmt.Sprintf("%.3f", p.Score.PIV),
			fmt.Sprintf("%.3f", p.Score.T.PIV),
			fmt.Sprintf("%.3f", p.Score.CT.PIV),
		)
	}
	table.Render()
}

// PrintSideTable prints the per-side PIV breakdown of each player.
// Columns: PLAYER | SIDE | ROLE | RCS | ICF | SC | OSM | BASIC | PIV
func PrintSideTable(w io.Writer, players []model.PlayerRecord) {
	table := newTable(w)
	table.Header("PLAYER", "SIDE", "ROLE", "RCS", "ICF", "SC", "OSM", "BASIC", "PIV")
	for i := range players {
		p := &players[i]
		for _, s := range []struct {
			side  model.Side
			score model.SideScore
		}{{model.SideT, p.Score.T}, {model.SideCT, p.Score.CT}} {
			table.Append(
				p.Name,
				s.side.String(),
				s.score.Role.String(),
				fmt.Sprintf("%.2f", s.score.RCS),
				fmt.Sprintf("%.2f", s.score.ICF),
				fmt.Sprintf("%.2f", s.score.SC),
				fmt.Sprintf("%.2f", s.score.OSM),
				fmt.Sprintf("%.2f", s.score.Basic),
				fmt.Sprintf("%.3f", s.score.PIV),
			)
		}
	}
	table.Render()
}

// PrintPlayerHistory prints one player's ratings across stored runs.
func PrintPlayerHistory(w io.Writer, hist []storage.PlayerHistory) {
	table := newTable(w)
	table.Header("RUN", "STARTED", "EVENT", "TEAM", "ROLE", "PIV", "T_PIV", "CT_PIV")
	for _, h := range hist {
		table.Append(
			shortID(h.RunID),
			h.StartedAt.Format(time.DateOnly),
			h.Event,
			h.Team,
			h.Primary.String(),
			fmt.Sprintf("%.3f", h.PIV),
			fmt.Sprintf("%.3f", h.TPIV),
			fmt.Sprintf("%.3f", h.CTPIV),
		)
	}
	table.Render()
}

// PrintTeamTable prints team aggregates and ratings.
func PrintTeamTable(w io.Writer, teams []model.TeamRecord) {
	table := newTable(w)
	table.Header(
		"EVENT", "TEAM", "N", "PIV_MEAN", "PIV_MAX", "PIV_MIN", "SPREAD",
		"ROLES", "BALANCE", "K/D", "TIR_NORM", "TIR",
	)
	for i := range teams {
		t := &teams[i]
		table.Append(
			t.Event,
			t.Team,
			strconv.Itoa(t.PlayerCount),
			fmt.Sprintf("%.3f", t.PIVMean),
			fmt.Sprintf("%.3f", t.PIVMax),
			fmt.Sprintf("%.3f", t.PIVMin),
			fmt.Sprintf("%.3f", t.PIVSpread),
			strconv.Itoa(t.RoleDiversity),
			fmt.Sprintf("%.2f", t.RoleBalance),
			fmt.Sprintf("%.2f", t.Means[model.FeatureKD]),
			fmt.Sprintf("%.3f", t.TIRNormalized),
			fmt.Sprintf("%.1f", t.TIRDisplay),
		)
	}
	table.Render()
}

// PrintWeightTable prints a weight table, heaviest feature first.
func PrintWeightTable(w io.Writer, wt model.WeightTable) {
	m := wt.Meta
	fmt.Fprintf(w, "\nWeights: %s  |  Source: %s  |  Fit: %s  |  Samples: %d  |  Alpha: %.2f\n\n",
		m.Version, m.Source, m.FitDate, m.SampleCount, m.Alpha)

	table := newTable(w)
	table.Header("FEATURE", "WEIGHT", "SHARE")
	for _, fw := range wt.Sorted() {
		table.Append(
			string(fw.Feature),
			fmt.Sprintf("%.4f", fw.Weight),
			bar(fw.Weight),
		)
	}
	table.Render()
}

// PrintWeightHistory prints the metadata of stored weight tables.
func PrintWeightHistory(w io.Writer, metas []model.WeightMeta) {
	table := newTable(w)
	table.Header("VERSION", "FIT_DATE", "SOURCE", "SAMPLES", "ALPHA")
	for _, m := range metas {
		table.Append(m.Version, m.FitDate, string(m.Source), strconv.Itoa(m.SampleCount), fmt.Sprintf("%.2f", m.Alpha))
	}
	table.Render()
}

// PrintPredictionTable prints head-to-head predictions. Pairs without
// ground truth show a dash in the ACTUAL column.
func PrintPredictionTable(w io.Writer, preds []model.MatchPrediction) {
	table := newTable(w)
	table.Header("EVENT", "TEAM_A", "TEAM_B", "TIR_A", "TIR_B", "P(A)", "PREDICTED", "ACTUAL", " ")
	for _, p := range preds {
		actual, mark := "—", " "
		if p.HasGroundTruth {
			actual = p.ActualWinner
			mark = "✗"
			if p.IsCorrect {
				mark = "✓"
			}
		}
		table.Append(
			p.Event,
			p.TeamA,
			p.TeamB,
			fmt.Sprintf("%.3f", p.TeamATIR),
			fmt.Sprintf("%.3f", p.TeamBTIR),
			fmt.Sprintf("%.1f%%", 100*p.TeamAWinProb),
			p.PredictedWinner,
			actual,
			mark,
		)
	}
	table.Render()
}

// PrintAccuracy prints the share of correct predictions with its 95% Wilson
// interval and a sample-size flag.
func PrintAccuracy(w io.Writer, evaluated, correct int) {
	if evaluated == 0 {
		fmt.Fprintln(w, "\nAccuracy: no head-to-head ground truth")
		return
	}
	lo, hi := wilsonCI(correct, evaluated)
	fmt.Fprintf(w, "\nAccuracy: %d/%d = %.1f%%  (95%% CI %.1f–%.1f%%)  [%s]\n",
		correct, evaluated, 100*float64(correct)/float64(evaluated), 100*lo, 100*hi, sampleFlag(evaluated))
}

// PrintDiagnostics prints degraded-mode substitution counts.
func PrintDiagnostics(w io.Writer, counts []diag.Count) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No degraded-mode substitutions.")
		return
	}
	table := newTable(w)
	table.Header("STAGE", "KIND", "COUNT", "FIRST DETAIL")
	for _, c := range counts {
		table.Append(string(c.Stage), c.Kind, strconv.Itoa(c.Count), c.Detail)
	}
	table.Render()
}

// PrintRaw prints the result of an arbitrary query.
func PrintRaw(w io.Writer, cols []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	table := newTable(w)
	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)
	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// bar renders a weight in [0,1] as a 20-cell bar.
func bar(v float64) string {
	n := int(math.Round(20 * math.Max(0, math.Min(1, v))))
	out := make([]rune, 20)
	for i := range out {
		out[i] = '·'
		if i < n {
			out[i] = '█'
		}
	}
	return string(out)
}

func sampleFlag(n int) string {
	switch {
	case n >= 50:
		return "OK"
	case n >= 20:
		return "LOW"
	default:
		return "VERY_LOW"
	}
}

// wilsonCI computes the 95% Wilson score confidence interval for a proportion.
// Returns (lo, hi) as fractions in [0, 1].
func wilsonCI(hits, n int) (lo, hi float64) {
	if n == 0 {
		return 0, 1
	}
	z := 1.96
	p := float64(hits) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}
