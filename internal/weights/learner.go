// Package weights learns Team Impact Rating feature weights from round
// outcomes and persists versioned weight tables.
package weights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pable/cs-impact/internal/aggregator"
	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// versionLayout formats the timestamp part of weight table versions.
const versionLayout = "20060102150405"

// newVersion returns a version id that sorts by fit time and stays unique
// for fits made within the same second.
func newVersion(now time.Time) string {
	return now.UTC().Format(versionLayout) + "-" + uuid.NewString()[:8]
}

// Learner fits feature weights by ridge regression of team features on
// round win percentage.
type Learner struct {
	cfg config.Learner
}

// NewLearner returns a Learner with the given settings.
func NewLearner(cfg config.Learner) *Learner {
	return &Learner{cfg: cfg}
}

// Features returns the features the learner weights, in sorted order.
func (l *Learner) Features() []model.Feature {
	out := make([]model.Feature, 0, len(l.cfg.DefaultWeights))
	for name := range l.cfg.DefaultWeights {
		if f, ok := model.ParseFeature(name); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultTable returns the configured default weights normalised to sum to 1.
func (l *Learner) DefaultTable(now time.Time) model.WeightTable {
	w := make(map[model.Feature]float64, len(l.cfg.DefaultWeights))
	for name, v := range l.cfg.DefaultWeights {
		if f, ok := model.ParseFeature(name); ok {
			w[f] = v
		}
	}
	return model.WeightTable{
		Meta: model.WeightMeta{
			Version: "default",
			FitDate: now.UTC().Format(time.DateOnly),
			Source:  model.WeightsDefault,
			Alpha:   l.cfg.RidgeAlpha,
		},
		Weights: normalize(w),
	}
}

// RoundWinPct returns the fraction of rounds each (event, team) won. A
// round counts as played for both its CT and T team; teams never named on
// a side have no percentage.
func RoundWinPct(outcomes []model.RoundOutcome) map[model.TeamKey]float64 {
	wins := make(map[model.TeamKey]int)
	played := make(map[model.TeamKey]int)
	for i := range outcomes {
		o := &outcomes[i]
		for _, team := range []string{o.CTTeam, o.TTeam} {
			if team != "" {
				played[model.TeamKey{Event: o.Event, Team: team}]++
			}
		}
		if w := o.WinnerTeam(); w != "" {
			wins[model.TeamKey{Event: o.Event, Team: w}]++
		}
	}
	pct := make(map[model.TeamKey]float64, len(played))
	for k, n := range played {
		pct[k] = float64(wins[k]) / float64(n)
	}
	return pct
}

// Fit learns a weight table. With no outcomes or fewer than MinSamples
// joined rows it returns DefaultTable and records the fallback.
func (l *Learner) Fit(teams []model.TeamRecord, outcomes []model.RoundOutcome, now time.Time, rec *diag.Recorder) model.WeightTable {
	features := l.Features()
	pct := RoundWinPct(outcomes)

	var rows []*model.TeamRecord
	var y []float64
	for i := range teams {
		if v, ok := pct[teams[i].Key()]; ok {
			rows = append(rows, &teams[i])
			y = append(y, v)
		}
	}

	if len(outcomes) == 0 || len(rows) < l.cfg.MinSamples {
		rec.Note(diag.StageWeights, diag.ErrInsufficientSample, 1,
			fmt.Sprintf("%d joined rows, need %d; default weights used", len(rows), l.cfg.MinSamples))
		return l.DefaultTable(now)
	}

	x := designMatrix(rows, features)
	coef, err := ridge(x, y, l.cfg.RidgeAlpha)
	if err != nil {
		rec.Note(diag.StageWeights, diag.ErrDegenerateRange, 1, fmt.Sprintf("ridge solve: %v", err))
		return l.DefaultTable(now)
	}

	w := make(map[model.Feature]float64, len(features))
	for j, f := range features {
		w[f] = math.Abs(coef[j])
	}
	if sumOf(w) == 0 {
		rec.Note(diag.StageWeights, diag.ErrDegenerateRange, 1, "all coefficients are zero; uniform weights used")
	}
	rec.Rows(diag.StageWeights, len(rows))
	return model.WeightTable{
		Meta: model.WeightMeta{
			Version:     newVersion(now),
			FitDate:     now.UTC().Format(time.DateOnly),
			SampleCount: len(rows),
			Source:      model.WeightsLearned,
			Alpha:       l.cfg.RidgeAlpha,
		},
		Weights: normalize(w),
	}
}

// designMatrix builds the rows x features matrix of team means, each
// column min-max scaled over the training rows.
func designMatrix(rows []*model.TeamRecord, features []model.Feature) *mat.Dense {
	x := mat.NewDense(len(rows), len(features), nil)
	col := make([]float64, len(rows))
	for j, f := range features {
		for i, t := range rows {
			col[i] = t.Means[f]
		}
		scaled, _ := aggregator.MinMax(col)
		x.SetCol(j, scaled)
	}
	return x
}

// ridge solves (XcᵀXc + αI)β = Xcᵀyc where Xc and yc are the column-centred
// design matrix and target, so the intercept is absorbed by centring.
func ridge(x *mat.Dense, y []float64, alpha float64) ([]float64, error) {
	n, p := x.Dims()
	xc := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		m := stat.Mean(col, nil)
		floats.AddConst(-m, col)
		xc.SetCol(j, col)
	}
	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-stat.Mean(yc, nil), yc)

	var a mat.Dense
	a.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		a.Set(j, j, a.At(j, j)+alpha)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	out := make([]float64, p)
	for j := range out {
		out[j] = beta.AtVec(j)
	}
	return out, nil
}

// normalize shifts weights so the minimum is non-negative and scales them
// to sum to 1. An all-zero table becomes uniform.
func normalize(w map[model.Feature]float64) map[model.Feature]float64 {
	out := make(map[model.Feature]float64, len(w))
	if len(w) == 0 {
		return out
	}
	keys := sortedKeys(w)
	lo := math.Inf(1)
	for _, f := range keys {
		lo = math.Min(lo, w[f])
	}
	shift := 0.0
	if lo < 0 {
		shift = -lo
	}
	var total float64
	for _, f := range keys {
		out[f] = w[f] + shift
		total += out[f]
	}
	if total <= 0 {
		for f := range out {
			out[f] = 1 / float64(len(out))
		}
		return out
	}
	for f := range out {
		out[f] /= total
	}
	return out
}

func sumOf(w map[model.Feature]float64) float64 {
	var s float64
	for _, f := range sortedKeys(w) {
		s += w[f]
	}
	return s
}

func sortedKeys(w map[model.Feature]float64) []model.Feature {
	keys := make([]model.Feature, 0, len(w))
	for f := range w {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
