// Package export writes the player and team tables as Parquet files.
package export

import (
	"fmt"
	"path/filepath"

	"github.com/pable/cs-impact/internal/model"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const parallelism = 4

// PlayerRow is the Parquet layout of one scored player.
type PlayerRow struct {
	RunID                string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SteamID              string  `parquet:"name=steam_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name                 string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Team                 string  `parquet:"name=team, type=BYTE_ARRAY, convertedtype=UTF8"`
	Event                string  `parquet:"name=event, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kills                int64   `parquet:"name=kills, type=INT64"`
	Deaths               int64   `parquet:"name=deaths, type=INT64"`
	Assists              int64   `parquet:"name=assists, type=INT64"`
	KD                   float64 `parquet:"name=kd, type=DOUBLE"`
	HSPercentage         float64 `parquet:"name=hs_percentage, type=DOUBLE"`
	FirstKillSuccess     float64 `parquet:"name=first_kill_success, type=DOUBLE"`
	TFirstKillSuccess    float64 `parquet:"name=t_first_kill_success, type=DOUBLE"`
	CTFirstKillSuccess   float64 `parquet:"name=ct_first_kill_success, type=DOUBLE"`
	FlashEfficiency      float64 `parquet:"name=flash_efficiency, type=DOUBLE"`
	EntryRatio           float64 `parquet:"name=entry_ratio, type=DOUBLE"`
	TotalUtility         int64   `parquet:"name=total_utility, type=INT64"`
	UtilityEffectiveness float64 `parquet:"name=utility_effectiveness, type=DOUBLE"`
	UtilityDmgPerRound   float64 `parquet:"name=utility_dmg_per_round, type=DOUBLE"`
	Consistency          float64 `parquet:"name=consistency, type=DOUBLE"`
	ImpactScore          float64 `parquet:"name=impact_score, type=DOUBLE"`
	TRole                string  `parquet:"name=t_role, type=BYTE_ARRAY, convertedtype=UTF8"`
	CTRole               string  `parquet:"name=ct_role, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsIGL                bool    `parquet:"name=is_igl, type=BOOLEAN"`
	PrimaryRole          string  `parquet:"name=primary_role, type=BYTE_ARRAY, convertedtype=UTF8"`
	RoleSource           string  `parquet:"name=role_source, type=BYTE_ARRAY, convertedtype=UTF8"`
	RCS                  float64 `parquet:"name=rcs, type=DOUBLE"`
	ICF                  float64 `parquet:"name=icf, type=DOUBLE"`
	SC                   float64 `parquet:"name=sc, type=DOUBLE"`
	OSM                  float64 `parquet:"name=osm, type=DOUBLE"`
	PIV                  float64 `parquet:"name=piv, type=DOUBLE"`
	TPIV                 float64 `parquet:"name=t_piv, type=DOUBLE"`
	CTPIV                float64 `parquet:"name=ct_piv, type=DOUBLE"`
}

// TeamRow is the Parquet layout of one rated team.
type TeamRow struct {
	RunID         string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Event         string  `parquet:"name=event, type=BYTE_ARRAY, convertedtype=UTF8"`
	Team          string  `parquet:"name=team, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlayerCount   int64   `parquet:"name=player_count, type=INT64"`
	PIVMean       float64 `parquet:"name=piv_mean, type=DOUBLE"`
	PIVMax        float64 `parquet:"name=piv_max, type=DOUBLE"`
	PIVMin        float64 `parquet:"name=piv_min, type=DOUBLE"`
	PIVSpread     float64 `parquet:"name=piv_spread, type=DOUBLE"`
	RoleDiversity int64   `parquet:"name=role_diversity, type=INT64"`
	RoleBalance   float64 `parquet:"name=role_balance, type=DOUBLE"`
	KD            float64 `parquet:"name=kd, type=DOUBLE"`
	ICF           float64 `parquet:"name=icf, type=DOUBLE"`
	TIR           float64 `parquet:"name=tir, type=DOUBLE"`
	TIRNormalized float64 `parquet:"name=tir_normalized, type=DOUBLE"`
	TIRDisplay    float64 `parquet:"name=tir_display, type=DOUBLE"`
}

// PlayerRows flattens scored players for export.
func PlayerRows(runID string, players []model.PlayerRecord) []PlayerRow {
	rows := make([]PlayerRow, len(players))
	for i := range players {
		p := &players[i]
		d := &p.Derived
		rows[i] = PlayerRow{
			RunID: runID, SteamID: p.SteamID, Name: p.Name, Team: p.Team, Event: p.Event,
			Kills:                int64(p.Raw.Kills),
			Deaths:               int64(p.Raw.Deaths),
			Assists:              int64(p.Raw.Assists),
			KD:                   d.KD,
			HSPercentage:         d.HSPercentage,
			FirstKillSuccess:     d.FirstKillSuccess,
			TFirstKillSuccess:    d.TFirstKillSuccess,
			CTFirstKillSuccess:   d.CTFirstKillSuccess,
			FlashEfficiency:      d.FlashEfficiency,
			EntryRatio:           d.EntryRatio,
			TotalUtility:         int64(d.TotalUtility),
			UtilityEffectiveness: d.UtilityEffectiveness,
			UtilityDmgPerRound:   d.UtilityDmgPerRound,
			Consistency:          d.Consistency,
			ImpactScore:          d.ImpactScore,
			TRole:                p.Roles.TRole.String(),
			CTRole:               p.Roles.CTRole.String(),
			IsIGL:                p.Roles.IsIGL,
			PrimaryRole:          p.Roles.Primary.String(),
			RoleSource:           string(p.Roles.Source),
			RCS:                  p.Score.RCS,
			ICF:                  p.Score.ICF,
			SC:                   p.Score.SC,
			OSM:                  p.Score.OSM,
			PIV:                  p.Score.PIV,
			TPIV:                 p.Score.T.PIV,
			CTPIV:                p.Score.CT.PIV,
		}
	}
	return rows
}

// TeamRows flattens rated teams for export.
func TeamRows(runID string, teams []model.TeamRecord) []TeamRow {
	rows := make([]TeamRow, len(teams))
	for i := range teams {
		t := &teams[i]
		rows[i] = TeamRow{
			RunID: runID, Event: t.Event, Team: t.Team,
			PlayerCount:   int64(t.PlayerCount),
			PIVMean:       t.PIVMean,
			PIVMax:        t.PIVMax,
			PIVMin:        t.PIVMin,
			PIVSpread:     t.PIVSpread,
			RoleDiversity: int64(t.RoleDiversity),
			RoleBalance:   t.RoleBalance,
			KD:            t.Means[model.FeatureKD],
			ICF:           t.Means[model.FeatureICF],
			TIR:           t.TIR,
			TIRNormalized: t.TIRNormalized,
			TIRDisplay:    t.TIRDisplay,
		}
	}
	return rows
}

// Files names the Parquet files written by Write.
type Files struct {
	Players string
	Teams   string
}

// Write exports players and teams into dir as player_ratings.parquet and
// team_ratings.parquet. Existing files are replaced.
func Write(dir, runID string, players []model.PlayerRecord, teams []model.TeamRecord) (Files, error) {
	f := Files{
		Players: filepath.Join(dir, "player_ratings.parquet"),
		Teams:   filepath.Join(dir, "team_ratings.parquet"),
	}
	if err := writeRows(f.Players, PlayerRows(runID, players)); err != nil {
		return Files{}, fmt.Errorf("export players: %w", err)
	}
	if err := writeRows(f.Teams, TeamRows(runID, teams)); err != nil {
		return Files{}, fmt.Errorf("export teams: %w", err)
	}
	return f, nil
}

func writeRows[T any](path string, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(T), parallelism)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish %s: %w", path, err)
	}
	return nil
}
