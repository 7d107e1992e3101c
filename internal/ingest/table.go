// Package ingest loads the pipeline's CSV inputs: the raw player table,
// round outcomes, the role book and the role-weight table.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// aliases maps normalised header names used by older exports to the
// canonical column name.
var aliases = map[string]string{
	"user_name":      "name",
	"username":       "name",
	"player":         "name",
	"player_name":    "name",
	"team_clan_name": "team",
	"teamname":       "team",
	"team_name":      "team",
	"steamid":        "steam_id",
	"steam_id64":     "steam_id",
	"firstkills":     "first_kills",
	"firstdeaths":    "first_deaths",
	"totalkills":     "kills",
	"totaldeaths":    "deaths",
	"event_name":     "event",
	"round":          "round_num",
	"winner":         "round_winner",
}

// table is a parsed CSV file with a normalised header.
type table struct {
	cols map[string]int
	rows [][]string
}

// readTable parses r as a headed CSV. It returns a table with no rows when r
// holds only a header, and an empty table (no columns) when r is empty.
func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &table{cols: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		name := normalizeHeader(h, i == 0)
		if canon, ok := aliases[name]; ok {
			if _, taken := t.cols[canon]; taken {
				continue
			}
			name = canon
		}
		if _, dup := t.cols[name]; !dup {
			t.cols[name] = i
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.rows)+2, err)
		}
		if blankRow(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// normalizeHeader lower-cases a header cell and joins words with
// underscores, so "T Role" and "t-role" both become "t_role".
func normalizeHeader(h string, first bool) string {
	if first {
		h = strings.TrimPrefix(h, "\ufeff")
	}
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// require returns an error naming every listed column the table lacks.
func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// cell returns the trimmed value of col in row, or "" when the column is
// absent or the row is short.
func (t *table) cell(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// openFile opens path and applies load to it.
func openFile[T any](path string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := load(f)
	if err != nil {
		return zero, fmt.Errorf("load %s: %w", path, err)
	}
	return v, nil
}

// errRow formats a row-level load error with its 1-based file line.
func errRow(err error, i int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", err, i+2, fmt.Sprintf(format, args...))
}
