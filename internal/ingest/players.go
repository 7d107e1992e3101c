package ingest

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

// LoadPlayers reads the raw player table. Rows carry their event from an
// "event" column when present, else defaultEvent. A stat column absent from
// the header, a blank cell or a non-numeric cell leaves the stat at zero
// and flags it missing on the row. A row repeating an earlier (steam_id,
// event) key is dropped and counted as diag.ErrMissingInput; a blank
// steam_id takes the player's name. An empty table is fatal (diag.ErrNoInput).
func LoadPlayers(r io.Reader, defaultEvent string, rec *diag.Recorder) ([]model.PlayerRecord, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%w: player table has no rows", diag.ErrNoInput)
	}
	if err := t.require("name", "team"); err != nil {
		return nil, err
	}
	if !t.has("event") && defaultEvent == "" {
		return nil, fmt.Errorf("%w: event (and no default event given)", ErrMissingColumn)
	}

	names := statNames()
	var absent model.Stat
	for _, n := range names {
		if !t.has(n) {
			absent |= model.StatColumns[n]
		}
	}

	out := make([]model.PlayerRecord, 0, len(t.rows))
	blank := make(map[string]int)
	bad := make(map[string]int)
	seen := make(map[[2]string]bool, len(t.rows))
	dups := 0
	var firstDup string
	for _, row := range t.rows {
		p := model.PlayerRecord{
			SteamID: t.cell(row, "steam_id"),
			Name:    t.cell(row, "name"),
			Team:    t.cell(row, "team"),
			Event:   t.cell(row, "event"),
		}
		if p.Event == "" {
			p.Event = defaultEvent
		}
		if p.SteamID == "" {
			p.SteamID = p.Name
		}
		key := [2]string{p.SteamID, p.Event}
		if seen[key] {
			if dups == 0 {
				firstDup = fmt.Sprintf("duplicate player %q in event %q; first row kept", p.SteamID, p.Event)
			}
			dups++
			continue
		}
		seen[key] = true
		p.Raw.Missing = absent

		for _, n := range names {
			st := model.StatColumns[n]
			if absent.Has(st) {
				continue
			}
			v, ok, parsed := parseCount(t.cell(row, n))
			if !ok {
				p.Raw.Missing |= st
				if parsed {
					blank[n]++
				} else {
					bad[n]++
				}
				continue
			}
			p.Raw.Set(st, v)
		}
		out = append(out, p)
	}

	for _, n := range names {
		if absent.Has(model.StatColumns[n]) {
			rec.Note(diag.StageIngest, diag.ErrMissingInput, len(out), "column "+n+" absent")
		}
	}
	for _, n := range names {
		rec.Note(diag.StageIngest, diag.ErrMissingInput, blank[n], "column "+n+" blank")
		rec.Note(diag.StageIngest, diag.ErrMissingInput, bad[n], "column "+n+" not numeric")
	}
	rec.Note(diag.StageIngest, diag.ErrMissingInput, dups, firstDup)
	rec.Rows(diag.StageIngest, len(out))
	return out, nil
}

// LoadPlayersFile opens path and loads it with LoadPlayers.
func LoadPlayersFile(path, defaultEvent string, rec *diag.Recorder) ([]model.PlayerRecord, error) {
	return openFile(path, func(r io.Reader) ([]model.PlayerRecord, error) {
		return LoadPlayers(r, defaultEvent, rec)
	})
}

// parseCount parses a counting stat. Decimal values ("12.0") are rounded.
// ok is false for blank or unparseable cells; blank reports which.
func parseCount(s string) (v int, ok bool, blank bool) {
	if s == "" {
		return 0, false, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return int(math.Round(f)), true, false
}

func statNames() []string {
	names := make([]string, 0, len(model.StatColumns))
	for n := range model.StatColumns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
