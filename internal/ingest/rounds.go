package ingest

import (
	"io"
	"strconv"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

// LoadRounds reads the round outcome table (event, round_num, round_winner,
// ct_team, t_team). round_num defaults to the row position. Rows without a
// winner are dropped and counted. An empty table yields no outcomes.
func LoadRounds(r io.Reader, rec *diag.Recorder) ([]model.RoundOutcome, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, nil
	}
	if err := t.require("event", "round_winner", "ct_team", "t_team"); err != nil {
		return nil, err
	}

	out := make([]model.RoundOutcome, 0, len(t.rows))
	dropped := 0
	for i, row := range t.rows {
		o := model.RoundOutcome{
			Event:       t.cell(row, "event"),
			RoundNum:    i + 1,
			RoundWinner: t.cell(row, "round_winner"),
			CTTeam:      t.cell(row, "ct_team"),
			TTeam:       t.cell(row, "t_team"),
		}
		if n, err := strconv.Atoi(t.cell(row, "round_num")); err == nil {
			o.RoundNum = n
		}
		if o.WinnerTeam() == "" {
			dropped++
			continue
		}
		out = append(out, o)
	}
	rec.Note(diag.StageIngest, diag.ErrMissingInput, dropped, "round outcome without a winner")
	return out, nil
}

// LoadRoundsFile opens path and loads it with LoadRounds.
func LoadRoundsFile(path string, rec *diag.Recorder) ([]model.RoundOutcome, error) {
	return openFile(path, func(r io.Reader) ([]model.RoundOutcome, error) {
		return LoadRounds(r, rec)
	})
}
