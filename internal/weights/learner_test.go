package weights

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

var fitTime = time.Date(2025, 2, 9, 18, 30, 0, 0, time.UTC)

func newLearner() *Learner { return NewLearner(config.New().Learner) }

func checkSimplex(t *testing.T, w model.WeightTable) {
	t.Helper()
	if math.Abs(w.Sum()-1) > 1e-9 {
		t.Errorf("weights sum to %v, want 1", w.Sum())
	}
	for f, v := range w.Weights {
		if v < 0 {
			t.Errorf("weight %s = %v is negative", f, v)
		}
	}
}

// makeTeams builds n teams whose only varying feature is kd.
func makeTeams(n int) []model.TeamRecord {
	teams := make([]model.TeamRecord, n)
	for i := range teams {
		teams[i] = model.TeamRecord{
			Event: "katowice",
			Team:  fmt.Sprintf("team%02d", i),
			Means: map[model.Feature]float64{
				model.FeatureKD:          0.8 + 0.05*float64(i),
				model.FeaturePIV:         1.0,
				model.FeatureRoleBalance: 0.9,
			},
		}
	}
	return teams
}

// roundsFor gives team i exactly i+1 wins out of 20 rounds against a
// common sparring partner, so win percentage rises with kd.
func roundsFor(teams []model.TeamRecord) []model.RoundOutcome {
	var out []model.RoundOutcome
	num := 0
	for i, tm := range teams {
		for r := 0; r < 20; r++ {
			num++
			winner := "T"
			if r < i+1 {
				winner = "CT"
			}
			out = append(out, model.RoundOutcome{
				Event: tm.Event, RoundNum: num, RoundWinner: winner,
				CTTeam: tm.Team, TTeam: "sparring",
			})
		}
	}
	return out
}

func TestDefaultTable(t *testing.T) {
	w := newLearner().DefaultTable(fitTime)
	if w.Meta.Source != model.WeightsDefault {
		t.Errorf("source: got %q, want default", w.Meta.Source)
	}
	if len(w.Weights) != 9 {
		t.Errorf("got %d features, want 9", len(w.Weights))
	}
	checkSimplex(t, w)
	if got, want := w.Weights[model.FeaturePIV], 0.40/2.30; math.Abs(got-want) > 1e-12 {
		t.Errorf("piv weight: got %v, want %v", got, want)
	}
}

func TestFitInsufficientSample(t *testing.T) {
	teams := makeTeams(3)
	rec := diag.NewRecorder()
	w := newLearner().Fit(teams, roundsFor(teams), fitTime, rec)
	if w.Meta.Source != model.WeightsDefault {
		t.Errorf("3 rows: got source %q, want default", w.Meta.Source)
	}
	checkSimplex(t, w)
	if rec.Count(diag.StageWeights, diag.ErrInsufficientSample) != 1 {
		t.Error("fallback should be recorded as insufficient sample")
	}
}

func TestFitNoOutcomes(t *testing.T) {
	w := newLearner().Fit(makeTeams(20), nil, fitTime, nil)
	if w.Meta.Source != model.WeightsDefault {
		t.Errorf("no outcomes: got source %q, want default", w.Meta.Source)
	}
}

func TestFitLearned(t *testing.T) {
	teams := makeTeams(12)
	w := newLearner().Fit(teams, roundsFor(teams), fitTime, nil)

	if w.Meta.Source != model.WeightsLearned {
		t.Fatalf("source: got %q, want learned", w.Meta.Source)
	}
	if w.Meta.SampleCount != 12 {
		t.Errorf("sample count: got %d, want 12", w.Meta.SampleCount)
	}
	if !strings.HasPrefix(w.Meta.Version, "20250209183000-") || w.Meta.FitDate != "2025-02-09" {
		t.Errorf("meta: got version %q date %q", w.Meta.Version, w.Meta.FitDate)
	}
	checkSimplex(t, w)
	// kd is the only feature that varies, so it carries all the weight
	if math.Abs(w.Weights[model.FeatureKD]-1) > 1e-9 {
		t.Errorf("kd weight: got %v, want 1", w.Weights[model.FeatureKD])
	}
}

func TestFitDeterministic(t *testing.T) {
	teams := makeTeams(15)
	teams[3].Means[model.FeaturePIV] = 1.4
	teams[9].Means[model.FeatureRoleBalance] = 0.2
	rounds := roundsFor(teams)
	a := newLearner().Fit(teams, rounds, fitTime, nil)
	b := newLearner().Fit(teams, rounds, fitTime, nil)
	for f, v := range a.Weights {
		if b.Weights[f] != v {
			t.Errorf("%s: %v != %v", f, v, b.Weights[f])
		}
	}
	checkSimplex(t, a)
}

func TestFitSameMinuteKeepsBothVersions(t *testing.T) {
	l := newLearner()
	s := NewFileStore(t.TempDir(), func() model.WeightTable { return l.DefaultTable(fitTime) })

	teams := makeTeams(12)
	a := l.Fit(teams, roundsFor(teams), fitTime, nil)
	other := makeTeams(12)
	other[4].Means[model.FeaturePIV] = 1.6
	other[7].Means[model.FeatureRoleBalance] = 0.3
	b := l.Fit(other, roundsFor(other), fitTime.Add(40*time.Second), nil)

	if a.Meta.Version == b.Meta.Version {
		t.Fatalf("fits 40s apart share version %q", a.Meta.Version)
	}
	for _, w := range []model.WeightTable{a, b} {
		if err := s.Save(w); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	hist, err := s.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history: got %d snapshots, want 2: %v", len(hist), hist)
	}
	first, err := Load(hist[0])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.Meta.Version != a.Meta.Version || math.Abs(first.Weights[model.FeatureKD]-a.Weights[model.FeatureKD]) > 1e-12 {
		t.Errorf("oldest snapshot: got %s kd=%v, want %s kd=%v",
			first.Meta.Version, first.Weights[model.FeatureKD], a.Meta.Version, a.Weights[model.FeatureKD])
	}
	if filepath.Base(filepath.Dir(hist[0])) != "2025-02-09" {
		t.Errorf("snapshot dir: got %s", hist[0])
	}
}

func TestRoundWinPct(t *testing.T) {
	rounds := []model.RoundOutcome{
		{Event: "e", RoundNum: 1, RoundWinner: "CT", CTTeam: "A", TTeam: "B"},
		{Event: "e", RoundNum: 2, RoundWinner: "B", CTTeam: "A", TTeam: "B"},
		{Event: "e", RoundNum: 3, RoundWinner: "t", CTTeam: "B", TTeam: "A"},
		{Event: "e", RoundNum: 4, RoundWinner: "A", CTTeam: "B", TTeam: "A"},
	}
	pct := RoundWinPct(rounds)
	if got := pct[model.TeamKey{Event: "e", Team: "A"}]; got != 0.75 {
		t.Errorf("A: got %v, want 0.75", got)
	}
	if got := pct[model.TeamKey{Event: "e", Team: "B"}]; got != 0.25 {
		t.Errorf("B: got %v, want 0.25", got)
	}
}

func TestNormalize(t *testing.T) {
	w := normalize(map[model.Feature]float64{model.FeatureKD: 0, model.FeaturePIV: 0})
	if w[model.FeatureKD] != 0.5 || w[model.FeaturePIV] != 0.5 {
		t.Errorf("all-zero weights should become uniform: %v", w)
	}
	w = normalize(map[model.Feature]float64{model.FeatureKD: -1, model.FeaturePIV: 1})
	if w[model.FeatureKD] != 0 || w[model.FeaturePIV] != 1 {
		t.Errorf("shifted weights: %v", w)
	}
}
