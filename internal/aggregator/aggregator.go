package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Aggregate groups players by (event, team) and returns the players with
// their within-team normalised metrics set, plus one TeamRecord per group in
// (event, team) order.
func Aggregate(players []model.PlayerRecord, rec *diag.Recorder) ([]model.PlayerRecord, []model.TeamRecord) {
	out := make([]model.PlayerRecord, len(players))
	copy(out, players)

	// ---- Pass 1: group rows by team. ----

	groups := make(map[model.TeamKey][]int)
	for i := range out {
		k := out[i].TeamKey()
		groups[k] = append(groups[k], i)
	}
	keys := make([]model.TeamKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Event != keys[j].Event {
			return keys[i].Event < keys[j].Event
		}
		return keys[i].Team < keys[j].Team
	})

	// ---- Pass 2: within-team z-scores, rescaled across the dataset. ----

	normalizeWithinTeams(out, keys, groups, rec)

	// ---- Pass 3: team records. ----

	teams := make([]model.TeamRecord, 0, len(keys))
	for _, k := range keys {
		teams = append(teams, teamRecord(k, out, groups[k]))
	}
	scaleTeams(teams, rec)

	rec.Rows(diag.StageAggregate, len(teams))
	return out, teams
}

func teamRecord(k model.TeamKey, players []model.PlayerRecord, idx []int) model.TeamRecord {
	t := model.TeamRecord{
		Event:       k.Event,
		Team:        k.Team,
		PlayerCount: len(idx),
		Means:       make(map[model.Feature]float64, len(model.PlayerFeatures)+2),
	}

	col := make([]float64, len(idx))
	for _, f := range model.PlayerFeatures {
		for j, i := range idx {
			col[j], _ = players[i].Value(f)
		}
		t.Means[f] = stat.Mean(col, nil)
	}

	for j, i := range idx {
		col[j] = players[i].Score.PIV
	}
	t.PIVMean = t.Means[model.FeaturePIV]
	t.PIVMax = floats.Max(col)
	t.PIVMin = floats.Min(col)
	t.PIVSpread = t.PIVMax - t.PIVMin

	roles := make([]model.Role, len(idx))
	for j, i := range idx {
		roles[j] = players[i].Roles.Primary
	}
	t.RoleDiversity, t.RoleBalance = RoleBalance(roles)
	t.Means[model.FeatureRoleDiversity] = float64(t.RoleDiversity)
	t.Means[model.FeatureRoleBalance] = t.RoleBalance
	return t
}

// RoleBalance returns the number of distinct roles and the normalised
// Shannon entropy of the role distribution. The entropy is 0 when there is
// at most one distinct role and 1 when all roles are equally frequent.
func RoleBalance(roles []model.Role) (int, float64) {
	counts := make(map[model.Role]int)
	for _, r := range roles {
		counts[r]++
	}
	k := len(counts)
	if k <= 1 {
		return k, 0
	}
	ordered := make([]model.Role, 0, k)
	for r := range counts {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	p := make([]float64, k)
	for i, r := range ordered {
		p[i] = float64(counts[r]) / float64(len(roles))
	}
	return k, stat.Entropy(p) / math.Log(float64(k))
}

// normalizeWithinTeams sets TeamNormalized on every player: the z-score of
// each metric against its team (sample std, 1 when undefined or zero), then
// min-max scaled across the whole dataset.
func normalizeWithinTeams(players []model.PlayerRecord, keys []model.TeamKey, groups map[model.TeamKey][]int, rec *diag.Recorder) {
	for i := range players {
		players[i].TeamNormalized = make(map[model.Feature]float64, len(model.TeamNormalizedFeatures))
	}
	if len(players) == 0 {
		return
	}

	flatStd := 0
	z := make([]float64, len(players))
	for _, f := range model.TeamNormalizedFeatures {
		for _, k := range keys {
			idx := groups[k]
			vals := make([]float64, len(idx))
			for j, i := range idx {
				vals[j], _ = players[i].Value(f)
			}
			mean := stat.Mean(vals, nil)
			sd := 1.0
			if len(vals) > 1 {
				if s := stat.StdDev(vals, nil); s > 0 && !math.IsNaN(s) {
					sd = s
				} else {
					flatStd++
				}
			}
			for j, i := range idx {
				z[i] = (vals[j] - mean) / sd
			}
		}
		scaled, ok := MinMax(z)
		if !ok {
			rec.Note(diag.StageAggregate, diag.ErrDegenerateRange, 1,
				fmt.Sprintf("%s: within-team scores are all equal", f))
		}
		for i := range players {
			players[i].TeamNormalized[f] = scaled[i]
		}
	}
	rec.Note(diag.StageAggregate, diag.ErrInsufficientSample, flatStd, "team std is zero; unit std used")
}

// scaleTeams fills Scaled on every team with each feature min-max scaled
// across the team set.
func scaleTeams(teams []model.TeamRecord, rec *diag.Recorder) {
	for i := range teams {
		teams[i].Scaled = make(map[model.Feature]float64, len(teams[i].Means))
	}
	if len(teams) == 0 {
		return
	}
	col := make([]float64, len(teams))
	for _, f := range model.TeamFeatures() {
		for i := range teams {
			col[i] = teams[i].Means[f]
		}
		scaled, ok := MinMax(col)
		if !ok && len(teams) > 1 {
			rec.Note(diag.StageAggregate, diag.ErrDegenerateRange, 1,
				fmt.Sprintf("%s: identical across teams", f))
		}
		for i := range teams {
			teams[i].Scaled[f] = scaled[i]
		}
	}
}

// MinMax rescales vals to [0,1]. When every value is equal (or vals is
// empty) it returns 0.5 for each element and false.
func MinMax(vals []float64) ([]float64, bool) {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out, false
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if !(hi > lo) {
		for i := range out {
			out[i] = 0.5
		}
		return out, false
	}
	for i, v := range vals {
		out[i] = (v - lo) / (hi - lo)
	}
	return out, true
}
