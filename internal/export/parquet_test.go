package export

import (
	"testing"

	"github.com/pable/cs-impact/internal/model"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// readRows reads a Parquet file written by Write back into rows of T.
func readRows[T any](t *testing.T, path string) []T {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), parallelism)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()

	rows := make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows
	}
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteAndReadBack(t *testing.T) {
	players := []model.PlayerRecord{
		{
			SteamID: "7656", Name: "ZywOo", Team: "Vitality", Event: "major",
			Raw:     model.RawStats{Kills: 25, Deaths: 12, Assists: 4},
			Derived: model.Derived{KD: 25.0 / 12, HSPercentage: 40, FirstKillSuccess: 0.7, TotalUtility: 18},
			Roles: model.RoleAssignment{
				TRole: model.RoleAWP, CTRole: model.RoleAWP, Primary: model.RoleAWP, Source: model.RoleFromTable,
			},
			Score: model.Score{PIV: 1.42, T: model.SideScore{PIV: 1.5}, CT: model.SideScore{PIV: 1.34}},
		},
		{
			SteamID: "7657", Name: "apEX", Team: "Vitality", Event: "major",
			Roles: model.RoleAssignment{IsIGL: true, Primary: model.RoleIGL, Source: model.RoleFromTable},
			Score: model.Score{PIV: 0.9},
		},
	}
	teams := []model.TeamRecord{{
		Event: "major", Team: "Vitality", PlayerCount: 2, PIVMean: 1.16, RoleDiversity: 2, RoleBalance: 1,
		Means:      map[model.Feature]float64{model.FeatureKD: 1.4},
		TIRDisplay: 100,
	}}

	files, err := Write(t.TempDir(), "run-1", players, teams)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	gotPlayers := readRows[PlayerRow](t, files.Players)
	if len(gotPlayers) != 2 {
		t.Fatalf("got %d player rows, want 2", len(gotPlayers))
	}
	p := gotPlayers[0]
	if p.RunID != "run-1" || p.Name != "ZywOo" || p.Kills != 25 || p.PrimaryRole != "AWP" || p.PIV != 1.42 || p.TPIV != 1.5 {
		t.Errorf("player row: got %+v", p)
	}
	if !gotPlayers[1].IsIGL || gotPlayers[1].PrimaryRole != "IGL" {
		t.Errorf("IGL row: got %+v", gotPlayers[1])
	}

	gotTeams := readRows[TeamRow](t, files.Teams)
	if len(gotTeams) != 1 || gotTeams[0].KD != 1.4 || gotTeams[0].TIRDisplay != 100 || gotTeams[0].RoleDiversity != 2 {
		t.Errorf("team rows: got %+v", gotTeams)
	}
}

func TestWriteBadDir(t *testing.T) {
	if _, err := Write("/nonexistent/dir/for/export", "r", nil, nil); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}
