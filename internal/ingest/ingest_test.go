package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/piv"
)

// ---- Players ----

func TestLoadPlayers(t *testing.T) {
	src := "Steam_ID,User Name,Team_Clan_Name,kills,deaths,headshots,first_kills,first_deaths\n" +
		"7656,s1mple,NAVI,20,10,10,6,2\n" +
		"7657, b1t ,NAVI,15.0,12,,3,3\n"
	rec := diag.NewRecorder()
	players, err := LoadPlayers(strings.NewReader(src), "major", rec)
	if err != nil {
		t.Fatalf("LoadPlayers: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("got %d players, want 2", len(players))
	}

	p := players[0]
	if p.SteamID != "7656" || p.Name != "s1mple" || p.Team != "NAVI" || p.Event != "major" {
		t.Errorf("identity: got %+v", p)
	}
	if p.Raw.Kills != 20 || p.Raw.Deaths != 10 || p.Raw.Headshots != 10 || p.Raw.FirstKills != 6 || p.Raw.FirstDeaths != 2 {
		t.Errorf("raw stats: got %+v", p.Raw)
	}
	if !p.Raw.Missing.Has(model.StatAssists | model.StatFlashesThrown) {
		t.Error("absent columns should be flagged missing")
	}
	if p.Raw.Missing.Any(model.StatKills | model.StatHeadshots) {
		t.Error("supplied columns should not be flagged missing")
	}

	b := players[1]
	if b.Name != "b1t" {
		t.Errorf("name should be trimmed: got %q", b.Name)
	}
	if b.Raw.Kills != 15 {
		t.Errorf("decimal count: got %d, want 15", b.Raw.Kills)
	}
	if !b.Raw.Missing.Has(model.StatHeadshots) {
		t.Error("blank headshots cell should be flagged missing")
	}
	if rec.Count(diag.StageIngest, diag.ErrMissingInput) == 0 {
		t.Error("missing columns should be recorded")
	}
}

func TestLoadPlayersEventColumn(t *testing.T) {
	src := "name,team,event,kills\na,T1,blast,3\nb,T2,,4\n"
	players, err := LoadPlayers(strings.NewReader(src), "fallback", nil)
	if err != nil {
		t.Fatalf("LoadPlayers: %v", err)
	}
	if players[0].Event != "blast" || players[1].Event != "fallback" {
		t.Errorf("events: got %q and %q", players[0].Event, players[1].Event)
	}
	if players[0].SteamID != "a" {
		t.Errorf("steam id should default to the name: got %q", players[0].SteamID)
	}
}

func TestLoadPlayersDuplicateKeys(t *testing.T) {
	stats := statNames()
	row := func(id, name, event, kills string) string {
		cells := []string{id, name, "NAVI", event}
		for _, n := range stats {
			v := "1"
			if n == "kills" {
				v = kills
			}
			cells = append(cells, v)
		}
		return strings.Join(cells, ",") + "\n"
	}
	src := "steam_id,name,team,event," + strings.Join(stats, ",") + "\n" +
		row("7656", "s1mple", "major", "20") +
		row("", "b1t", "major", "15") +
		row("7656", "s1mple", "major", "99") +
		row("", "b1t", "major", "7") +
		row("7656", "s1mple", "blast", "11")

	rec := diag.NewRecorder()
	players, err := LoadPlayers(strings.NewReader(src), "", rec)
	if err != nil {
		t.Fatalf("LoadPlayers: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("got %d players, want 3", len(players))
	}
	if players[0].Raw.Kills != 20 || players[1].SteamID != "b1t" || players[1].Raw.Kills != 15 {
		t.Errorf("first row should win: got %+v and %+v", players[0].Raw, players[1].Raw)
	}
	if players[2].Event != "blast" {
		t.Errorf("same steam id in another event should be kept: got %q", players[2].Event)
	}
	if got := rec.Count(diag.StageIngest, diag.ErrMissingInput); got != 2 {
		t.Errorf("duplicate count: got %d, want 2", got)
	}
	for _, c := range rec.Snapshot() {
		if c.Stage == diag.StageIngest && c.Detail != `duplicate player "7656" in event "major"; first row kept` {
			t.Errorf("detail: got %q", c.Detail)
		}
	}
}

func TestLoadPlayersNotNumeric(t *testing.T) {
	rec := diag.NewRecorder()
	players, err := LoadPlayers(strings.NewReader("name,team,kills\na,T1,many\n"), "e", rec)
	if err != nil {
		t.Fatalf("LoadPlayers: %v", err)
	}
	if !players[0].Raw.Missing.Has(model.StatKills) || players[0].Raw.Kills != 0 {
		t.Errorf("unparseable kills: got %+v", players[0].Raw)
	}
}

func TestLoadPlayersErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "", diag.ErrNoInput},
		{"header only", "name,team,kills\n", diag.ErrNoInput},
		{"no team", "name,kills\na,1\n", ErrMissingColumn},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadPlayers(strings.NewReader(tc.src), "e", nil)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}

	_, err := LoadPlayers(strings.NewReader("name,team\na,T1\n"), "", nil)
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("no event column and no default: got %v", err)
	}
}

func TestLoadPlayersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.csv")
	if err := os.WriteFile(path, []byte("name,team,kills\na,T1,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	players, err := LoadPlayersFile(path, "e", nil)
	if err != nil || len(players) != 1 {
		t.Fatalf("LoadPlayersFile: %v (%d rows)", err, len(players))
	}
	if _, err := LoadPlayersFile(filepath.Join(t.TempDir(), "nope.csv"), "e", nil); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// ---- Rounds ----

func TestLoadRounds(t *testing.T) {
	src := "event,round_num,round_winner,ct_team,t_team\n" +
		"major,1,CT,NAVI,Vitality\n" +
		"major,2,Vitality,NAVI,Vitality\n" +
		"major,3,,NAVI,Vitality\n"
	rec := diag.NewRecorder()
	rounds, err := LoadRounds(strings.NewReader(src), rec)
	if err != nil {
		t.Fatalf("LoadRounds: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("got %d rounds, want 2", len(rounds))
	}
	if rounds[0].WinnerTeam() != "NAVI" || rounds[1].WinnerTeam() != "Vitality" {
		t.Errorf("winners: got %q, %q", rounds[0].WinnerTeam(), rounds[1].WinnerTeam())
	}
	if rounds[1].RoundNum != 2 {
		t.Errorf("round_num: got %d, want 2", rounds[1].RoundNum)
	}
	if got := rec.Count(diag.StageIngest, diag.ErrMissingInput); got != 1 {
		t.Errorf("dropped rounds: got %d, want 1", got)
	}
}

func TestLoadRoundsEmpty(t *testing.T) {
	rounds, err := LoadRounds(strings.NewReader(""), nil)
	if err != nil || len(rounds) != 0 {
		t.Errorf("empty: got %v / %d", err, len(rounds))
	}
	_, err = LoadRounds(strings.NewReader("event,winner\nm,A\n"), nil)
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("missing side columns: got %v", err)
	}
}

// ---- Roles ----

func TestLoadRoles(t *testing.T) {
	src := "Player,T Role,CT Role,is_igl\n" +
		"apEX,Spacetaker,Anchor,yes\n" +
		"ZywOo,AWP,AWP,0\n"
	entries, err := LoadRoles(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadRoles: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if e := entries[0]; e.Name != "apEX" || e.TRole != "Spacetaker" || e.CTRole != "Anchor" || !e.IsIGL {
		t.Errorf("apEX: got %+v", e)
	}
	if entries[1].IsIGL {
		t.Error("ZywOo is not an IGL")
	}
}

func TestLoadRolesSingleColumn(t *testing.T) {
	src := "Player,Primary Role\nkarrigan,IGL\nropz,Lurker\n"
	entries, err := LoadRoles(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadRoles: %v", err)
	}
	if e := entries[0]; e.TRole != "IGL" || e.CTRole != "IGL" || !e.IsIGL {
		t.Errorf("karrigan: got %+v", e)
	}
	if e := entries[1]; e.TRole != "Lurker" || e.IsIGL {
		t.Errorf("ropz: got %+v", e)
	}

	if _, err := LoadRoles(strings.NewReader("name,team\na,b\n")); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("no role columns: got %v", err)
	}
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"true", "1", "yes", "Y", "TRUE"} {
		if !parseFlag(s) {
			t.Errorf("parseFlag(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "no", "false", "maybe"} {
		if parseFlag(s) {
			t.Errorf("parseFlag(%q) = true", s)
		}
	}
}

// ---- Role weights ----

func TestLoadRoleWeights(t *testing.T) {
	src := "role,side,metric,weight,definition\n" +
		"AWP,T,kd,0.6,kill ratio\n" +
		"AWP,T,first_kill_success,0.4,opening duels\n" +
		"Support,,utility,1.0,utility usage\n"
	w, err := LoadRoleWeights(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadRoleWeights: %v", err)
	}
	if got := w.For(model.RoleAWP, model.SideT)["kd"]; got != 0.6 {
		t.Errorf("AWP T kd: got %v, want 0.6", got)
	}
	for _, s := range []model.Side{model.SideT, model.SideCT} {
		if got := w.For(model.RoleSupport, s)["utility"]; got != 1.0 {
			t.Errorf("Support %s utility: got %v, want 1.0", s, got)
		}
	}
}

func TestLoadRoleWeightsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "role,metric,weight\n"},
		{"unknown role", "role,metric,weight\nSniper,kd,0.5\n"},
		{"unknown side", "role,side,metric,weight\nAWP,X,kd,0.5\n"},
		{"bad weight", "role,metric,weight\nAWP,kd,lots\n"},
		{"unknown metric", "role,metric,weight\nAWP,aim,0.5\n"},
		{"negative", "role,metric,weight\nAWP,kd,-1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRoleWeights(strings.NewReader(tc.src))
			if !errors.Is(err, piv.ErrInvalidWeights) {
				t.Errorf("got %v, want ErrInvalidWeights", err)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := []struct{ in, want string }{
		{"T Role", "t_role"},
		{" CT-Role ", "ct_role"},
		{"\ufeffname", "name"},
		{"kills", "kills"},
	}
	for _, c := range cases {
		if got := normalizeHeader(c.in, true); got != c.want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLoadRoleWeightsPartialTable(t *testing.T) {
	w, err := LoadRoleWeights(strings.NewReader("role,metric,weight\nAWP,kd,1\n"))
	if err != nil {
		t.Fatalf("LoadRoleWeights: %v", err)
	}
	if !w.Covers(model.RoleAWP, model.SideT) || !w.Covers(model.RoleAWP, model.SideCT) {
		t.Error("AWP should be covered on both sides")
	}
	if got := len(w.Uncovered()); got != 12 {
		t.Errorf("uncovered: got %d pairs, want 12", got)
	}
}
