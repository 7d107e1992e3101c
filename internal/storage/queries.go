package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

// Run is the header row of one persisted pipeline run.
type Run struct {
	ID             string
	StartedAt      time.Time
	InputPath      string
	PlayerCount    int
	TeamCount      int
	WeightsVersion string
	WeightsSource  model.WeightSource
	Evaluated      int
	Correct        int
}

const runColumns = `id, started_at, input_path, player_count, team_count,
		weights_version, weights_source, accuracy_evaluated, accuracy_correct`

// InsertRun inserts a run header. Uses INSERT OR REPLACE for idempotency.
func (db *DB) InsertRun(r Run) error {
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO runs(`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.InputPath, r.PlayerCount, r.TeamCount,
		r.WeightsVersion, string(r.WeightsSource), r.Evaluated, r.Correct,
	)
	return err
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.conn.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRunByPrefix finds the first run whose id starts with the given prefix.
func (db *DB) GetRunByPrefix(prefix string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`
		SELECT `+runColumns+` FROM runs WHERE id LIKE ? ORDER BY started_at DESC LIMIT 1`, prefix+"%"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// LatestRun returns the most recent run, or nil when the store is empty.
func (db *DB) LatestRun() (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// DeleteRun removes a run and, through the foreign keys, everything stored
// under it.
func (db *DB) DeleteRun(id string) error {
	res, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var started, source string
	if err := s.Scan(&r.ID, &started, &r.InputPath, &r.PlayerCount, &r.TeamCount,
		&r.WeightsVersion, &source, &r.Evaluated, &r.Correct); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	r.WeightsSource = model.WeightSource(source)
	return &r, nil
}

// ---- Players ----

// InsertPlayerRatings bulk-inserts scored players for a run in a transaction.
func (db *DB) InsertPlayerRatings(runID string, players []model.PlayerRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO player_ratings(
			run_id, steam_id, event, name, team,
			kills, deaths, assists,
			kd, hs_percentage, first_kill_success, t_first_kill_success, ct_first_kill_success,
			flash_efficiency, entry_ratio, total_utility, utility_effectiveness,
			utility_dmg_per_round, consistency, impact_score,
			t_role, ct_role, is_igl, primary_role, role_source,
			rcs, icf, sc, osm, piv, t_piv, ct_piv
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range players {
		p := &players[i]
		d := &p.Derived
		_, err = stmt.Exec(
			runID, p.SteamID, p.Event, p.Name, p.Team,
			p.Raw.Kills, p.Raw.Deaths, p.Raw.Assists,
			d.KD, d.HSPercentage, d.FirstKillSuccess, d.TFirstKillSuccess, d.CTFirstKillSuccess,
			d.FlashEfficiency, d.EntryRatio, d.TotalUtility, d.UtilityEffectiveness,
			d.UtilityDmgPerRound, d.Consistency, d.ImpactScore,
			int(p.Roles.TRole), int(p.Roles.CTRole), boolInt(p.Roles.IsIGL), int(p.Roles.Primary), string(p.Roles.Source),
			p.Score.RCS, p.Score.ICF, p.Score.SC, p.Score.OSM, p.Score.PIV, p.Score.T.PIV, p.Score.CT.PIV,
		)
		if err != nil {
			return fmt.Errorf("insert player_ratings for %s: %w", p.SteamID, err)
		}
	}
	return tx.Commit()
}

// GetPlayerRatings returns the scored players of a run ordered by PIV desc.
// Only persisted columns are populated.
func (db *DB) GetPlayerRatings(runID string) ([]model.PlayerRecord, error) {
	rows, err := db.conn.Query(`
		SELECT steam_id, event, name, team,
		       kills, deaths, assists,
		       kd, hs_percentage, first_kill_success, t_first_kill_success, ct_first_kill_success,
		       flash_efficiency, entry_ratio, total_utility, utility_effectiveness,
		       utility_dmg_per_round, consistency, impact_score,
		       t_role, ct_role, is_igl, primary_role, role_source,
		       rcs, icf, sc, osm, piv, t_piv, ct_piv
		FROM player_ratings WHERE run_id = ?
		ORDER BY piv DESC, name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerRecord
	for rows.Next() {
		var p model.PlayerRecord
		d := &p.Derived
		var tRole, ctRole, primary, isIGL int
		var source string
		if err := rows.Scan(
			&p.SteamID, &p.Event, &p.Name, &p.Team,
			&p.Raw.Kills, &p.Raw.Deaths, &p.Raw.Assists,
			&d.KD, &d.HSPercentage, &d.FirstKillSuccess, &d.TFirstKillSuccess, &d.CTFirstKillSuccess,
			&d.FlashEfficiency, &d.EntryRatio, &d.TotalUtility, &d.UtilityEffectiveness,
			&d.UtilityDmgPerRound, &d.Consistency, &d.ImpactScore,
			&tRole, &ctRole, &isIGL, &primary, &source,
			&p.Score.RCS, &p.Score.ICF, &p.Score.SC, &p.Score.OSM, &p.Score.PIV, &p.Score.T.PIV, &p.Score.CT.PIV,
		); err != nil {
			return nil, err
		}
		p.Roles = model.RoleAssignment{
			TRole:   model.Role(tRole),
			CTRole:  model.Role(ctRole),
			IsIGL:   isIGL != 0,
			Primary: model.Role(primary),
			Source:  model.RoleSource(source),
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlayerHistory is one player's rating in one run.
type PlayerHistory struct {
	RunID     string
	StartedAt time.Time
	Event     string
	Team      string
	Name      string
	Primary   model.Role
	PIV       float64
	TPIV      float64
	CTPIV     float64
}

// GetPlayerHistory returns every stored rating for a player, matched by
// steam id or name, oldest run first.
func (db *DB) GetPlayerHistory(key string) ([]PlayerHistory, error) {
	rows, err := db.conn.Query(`
		SELECT p.run_id, r.started_at, p.event, p.team, p.name,
		       p.primary_role, p.piv, p.t_piv, p.ct_piv
		FROM player_ratings p JOIN runs r ON r.id = p.run_id
		WHERE p.steam_id = ? OR p.name = ?
		ORDER BY r.started_at, p.event`, key, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerHistory
	for rows.Next() {
		var h PlayerHistory
		var started string
		var primary int
		if err := rows.Scan(&h.RunID, &started, &h.Event, &h.Team, &h.Name,
			&primary, &h.PIV, &h.TPIV, &h.CTPIV); err != nil {
			return nil, err
		}
		h.StartedAt, _ = time.Parse(time.RFC3339, started)
		h.Primary = model.Role(primary)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---- Teams ----

// InsertTeamRatings bulk-inserts rated teams and their feature means for a
// run in a transaction.
func (db *DB) InsertTeamRatings(runID string, teams []model.TeamRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO team_ratings(
			run_id, event, team, player_count,
			piv_mean, piv_max, piv_min, piv_spread,
			role_diversity, role_balance, tir, tir_normalized, tir_display
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	fstmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO team_features(run_id, event, team, feature, mean, scaled)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer fstmt.Close()

	for i := range teams {
		t := &teams[i]
		_, err = stmt.Exec(
			runID, t.Event, t.Team, t.PlayerCount,
			t.PIVMean, t.PIVMax, t.PIVMin, t.PIVSpread,
			t.RoleDiversity, t.RoleBalance, t.TIR, t.TIRNormalized, t.TIRDisplay,
		)
		if err != nil {
			return fmt.Errorf("insert team_ratings for %s/%s: %w", t.Event, t.Team, err)
		}
		for _, f := range sortedFeatures(t.Means) {
			if _, err := fstmt.Exec(runID, t.Event, t.Team, string(f), t.Means[f], t.Scaled[f]); err != nil {
				return fmt.Errorf("insert team_features %s for %s/%s: %w", f, t.Event, t.Team, err)
			}
		}
	}
	return tx.Commit()
}

// GetTeamRatings returns the teams of a run ordered by TIR desc, with their
// feature means and scaled values.
func (db *DB) GetTeamRatings(runID string) ([]model.TeamRecord, error) {
	rows, err := db.conn.Query(`
		SELECT event, team, player_count,
		       piv_mean, piv_max, piv_min, piv_spread,
		       role_diversity, role_balance, tir, tir_normalized, tir_display
		FROM team_ratings WHERE run_id = ?
		ORDER BY tir_normalized DESC, event, team`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TeamRecord
	index := make(map[model.TeamKey]int)
	for rows.Next() {
		var t model.TeamRecord
		if err := rows.Scan(
			&t.Event, &t.Team, &t.PlayerCount,
			&t.PIVMean, &t.PIVMax, &t.PIVMin, &t.PIVSpread,
			&t.RoleDiversity, &t.RoleBalance, &t.TIR, &t.TIRNormalized, &t.TIRDisplay,
		); err != nil {
			return nil, err
		}
		t.Means = make(map[model.Feature]float64)
		t.Scaled = make(map[model.Feature]float64)
		index[t.Key()] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := db.conn.Query(`
		SELECT event, team, feature, mean, scaled FROM team_features WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer frows.Close()
	for frows.Next() {
		var k model.TeamKey
		var f string
		var mean, scaled float64
		if err := frows.Scan(&k.Event, &k.Team, &f, &mean, &scaled); err != nil {
			return nil, err
		}
		if i, ok := index[k]; ok {
			out[i].Means[model.Feature(f)] = mean
			out[i].Scaled[model.Feature(f)] = scaled
		}
	}
	return out, frows.Err()
}

// ---- Weights ----

// InsertWeightTable stores a weight table under its version, replacing any
// table previously stored with the same version.
func (db *DB) InsertWeightTable(w model.WeightTable) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := w.Meta
	if _, err := tx.Exec(`
		INSERT INTO weight_tables(version, fit_date, sample_count, source, alpha)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			fit_date = excluded.fit_date, sample_count = excluded.sample_count,
			source = excluded.source, alpha = excluded.alpha`,
		m.Version, m.FitDate, m.SampleCount, string(m.Source), m.Alpha); err != nil {
		return fmt.Errorf("insert weight_tables %s: %w", m.Version, err)
	}
	if _, err := tx.Exec(`DELETE FROM weight_entries WHERE version = ?`, m.Version); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO weight_entries(version, feature, weight) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range sortedFeatures(w.Weights) {
		if _, err := stmt.Exec(m.Version, string(f), w.Weights[f]); err != nil {
			return fmt.Errorf("insert weight_entries %s: %w", f, err)
		}
	}
	return tx.Commit()
}

// GetWeightTable returns the table stored under version, or nil.
func (db *DB) GetWeightTable(version string) (*model.WeightTable, error) {
	var w model.WeightTable
	var source string
	err := db.conn.QueryRow(`
		SELECT version, fit_date, sample_count, source, alpha
		FROM weight_tables WHERE version = ?`, version).
		Scan(&w.Meta.Version, &w.Meta.FitDate, &w.Meta.SampleCount, &source, &w.Meta.Alpha)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Meta.Source = model.WeightSource(source)

	rows, err := db.conn.Query(`SELECT feature, weight FROM weight_entries WHERE version = ?`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	w.Weights = make(map[model.Feature]float64)
	for rows.Next() {
		var f string
		var v float64
		if err := rows.Scan(&f, &v); err != nil {
			return nil, err
		}
		w.Weights[model.Feature(f)] = v
	}
	return &w, rows.Err()
}

// ListWeightTables returns the metadata of every stored table, newest fit first.
func (db *DB) ListWeightTables() ([]model.WeightMeta, error) {
	rows, err := db.conn.Query(`
		SELECT version, fit_date, sample_count, source, alpha
		FROM weight_tables ORDER BY fit_date DESC, version DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeightMeta
	for rows.Next() {
		var m model.WeightMeta
		var source string
		if err := rows.Scan(&m.Version, &m.FitDate, &m.SampleCount, &source, &m.Alpha); err != nil {
			return nil, err
		}
		m.Source = model.WeightSource(source)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- Predictions ----

// InsertPredictions bulk-inserts match predictions for a run in a transaction.
func (db *DB) InsertPredictions(runID string, preds []model.MatchPrediction) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO match_predictions(
			run_id, event, team_a, team_b, team_a_tir, team_b_tir, team_a_win_prob,
			predicted_winner, actual_winner, is_correct, has_ground_truth
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range preds {
		_, err = stmt.Exec(
			runID, p.Event, p.TeamA, p.TeamB, p.TeamATIR, p.TeamBTIR, p.TeamAWinProb,
			p.PredictedWinner, p.ActualWinner, boolInt(p.IsCorrect), boolInt(p.HasGroundTruth),
		)
		if err != nil {
			return fmt.Errorf("insert match_predictions %s vs %s: %w", p.TeamA, p.TeamB, err)
		}
	}
	return tx.Commit()
}

// GetPredictions returns the predictions of a run in stored pair order.
func (db *DB) GetPredictions(runID string) ([]model.MatchPrediction, error) {
	rows, err := db.conn.Query(`
		SELECT event, team_a, team_b, team_a_tir, team_b_tir, team_a_win_prob,
		       predicted_winner, actual_winner, is_correct, has_ground_truth
		FROM match_predictions WHERE run_id = ?
		ORDER BY event, team_a, team_b`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchPrediction
	for rows.Next() {
		var p model.MatchPrediction
		var correct, truth int
		if err := rows.Scan(&p.Event, &p.TeamA, &p.TeamB, &p.TeamATIR, &p.TeamBTIR, &p.TeamAWinProb,
			&p.PredictedWinner, &p.ActualWinner, &correct, &truth); err != nil {
			return nil, err
		}
		p.IsCorrect = correct != 0
		p.HasGroundTruth = truth != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- Diagnostics ----

// InsertDiagnostics stores the degraded-mode counts of a run.
func (db *DB) InsertDiagnostics(runID string, counts []diag.Count) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO diagnostics(run_id, stage, kind, count, detail)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range counts {
		if _, err := stmt.Exec(runID, string(c.Stage), c.Kind, c.Count, c.Detail); err != nil {
			return fmt.Errorf("insert diagnostics %s/%s: %w", c.Stage, c.Kind, err)
		}
	}
	return tx.Commit()
}

// GetDiagnostics returns the degraded-mode counts of a run.
func (db *DB) GetDiagnostics(runID string) ([]diag.Count, error) {
	rows, err := db.conn.Query(`
		SELECT stage, kind, count, detail FROM diagnostics WHERE run_id = ?
		ORDER BY stage, kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []diag.Count
	for rows.Next() {
		var c diag.Count
		var stage string
		if err := rows.Scan(&stage, &c.Kind, &c.Count, &c.Detail); err != nil {
			return nil, err
		}
		c.Stage = diag.Stage(stage)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- Raw SQL ----

// QueryRaw runs an arbitrary query and returns the column names and every
// row rendered as strings. NULL renders as "NULL".
func (db *DB) QueryRaw(query string) ([]string, [][]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch x := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(x)
			case float64:
				row[i] = fmt.Sprintf("%.4g", x)
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortedFeatures(m map[model.Feature]float64) []model.Feature {
	out := make([]model.Feature, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- Overview ----

// Overview summarises the whole store.
type Overview struct {
	Runs          int
	FirstRun      string
	LatestRun     string
	Events        int
	Teams         int
	Players       int
	WeightTables  int
	LearnedTables int
}

// GetOverview returns store-wide counts. Dates are empty when no run exists.
func (db *DB) GetOverview() (Overview, error) {
	var ov Overview
	var first, latest sql.NullString
	err := db.conn.QueryRow(`
		SELECT COUNT(*), MIN(started_at), MAX(started_at) FROM runs`).Scan(&ov.Runs, &first, &latest)
	if err != nil {
		return ov, err
	}
	ov.FirstRun, ov.LatestRun = first.String, latest.String
	err = db.conn.QueryRow(`
		SELECT COUNT(DISTINCT event), COUNT(DISTINCT event || '/' || team), COUNT(DISTINCT steam_id)
		FROM player_ratings`).Scan(&ov.Events, &ov.Teams, &ov.Players)
	if err != nil {
		return ov, err
	}
	err = db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(source = 'learned'), 0) FROM weight_tables`).Scan(&ov.WeightTables, &ov.LearnedTables)
	return ov, err
}

// TopPlayer is a player's PIV averaged over every stored run.
type TopPlayer struct {
	SteamID string
	Name    string
	Runs    int
	AvgPIV  float64
	MaxPIV  float64
}

// GetTopPlayers returns the n players with the highest mean PIV.
func (db *DB) GetTopPlayers(n int) ([]TopPlayer, error) {
	rows, err := db.conn.Query(`
		SELECT steam_id, MAX(name), COUNT(DISTINCT run_id), AVG(piv), MAX(piv)
		FROM player_ratings
		GROUP BY steam_id
		ORDER BY AVG(piv) DESC, steam_id
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopPlayer
	for rows.Next() {
		var p TopPlayer
		if err := rows.Scan(&p.SteamID, &p.Name, &p.Runs, &p.AvgPIV, &p.MaxPIV); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
