// Package tir computes Team Impact Ratings and head-to-head win predictions.
package tir

import (
	"math"
	"sort"

	"github.com/pable/cs-impact/internal/aggregator"
	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"gonum.org/v1/gonum/floats"
)

// Rater turns team features and a weight table into ratings and predictions.
type Rater struct {
	cfg config.TIR
}

// New returns a Rater using the display band and steepness in cfg.
func New(cfg config.TIR) *Rater {
	return &Rater{cfg: cfg}
}

// Rate returns a copy of teams with TIR, TIRNormalized and TIRDisplay set.
// Features without a weight, or weights without a team feature, contribute 0.
func (r *Rater) Rate(teams []model.TeamRecord, w model.WeightTable, rec *diag.Recorder) []model.TeamRecord {
	out := make([]model.TeamRecord, len(teams))
	copy(out, teams)

	features := make([]model.Feature, 0, len(w.Weights))
	for f := range w.Weights {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

	weights := make([]float64, len(features))
	vals := make([]float64, len(features))
	for j, f := range features {
		weights[j] = w.Weights[f]
	}

	raw := make([]float64, len(out))
	for i := range out {
		for j, f := range features {
			vals[j] = out[i].Scaled[f] // absent -> 0
		}
		out[i].TIR = floats.Dot(weights, vals)
		raw[i] = out[i].TIR
	}

	norm, ok := aggregator.MinMax(raw)
	if !ok && len(out) > 1 {
		rec.Note(diag.StageTIR, diag.ErrDegenerateRange, 1, "all teams share one TIR")
	}
	for i := range out {
		out[i].TIRNormalized = norm[i]
		out[i].TIRDisplay = r.Display(norm[i])
	}
	rec.Rows(diag.StageTIR, len(out))
	return out
}

// Display maps a normalised rating onto the display band.
func (r *Rater) Display(norm float64) float64 {
	return r.cfg.DisplayMin + (r.cfg.DisplayMax-r.cfg.DisplayMin)*norm
}

// WinProbability is the logistic probability that a team rated a beats a
// team rated b, both on the normalised [0,1] scale.
func (r *Rater) WinProbability(a, b float64) float64 {
	return 1 / (1 + math.Exp(-r.cfg.Steepness*(a-b)))
}

// Accuracy summarises predictions checked against head-to-head rounds.
type Accuracy struct {
	Evaluated int
	Correct   int
}

// Rate returns Correct/Evaluated, or 0 with nothing evaluated.
func (a Accuracy) Rate() float64 {
	if a.Evaluated == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Evaluated)
}

// Predict forecasts every pair of teams within each event. Teams must carry
// TIRNormalized (see Rate). Pairs are emitted per event in sorted team
// order. When outcomes are given, each pair's actual winner is the team
// that won more of the rounds the two played against each other.
func (r *Rater) Predict(teams []model.TeamRecord, outcomes []model.RoundOutcome) ([]model.MatchPrediction, Accuracy) {
	byEvent := make(map[string][]*model.TeamRecord)
	for i := range teams {
		t := &teams[i]
		byEvent[t.Event] = append(byEvent[t.Event], t)
	}
	events := make([]string, 0, len(byEvent))
	for e := range byEvent {
		events = append(events, e)
	}
	sort.Strings(events)

	h2h := headToHead(outcomes)

	var preds []model.MatchPrediction
	var acc Accuracy
	for _, e := range events {
		ts := byEvent[e]
		sort.Slice(ts, func(i, j int) bool { return ts[i].Team < ts[j].Team })
		for i := 0; i < len(ts); i++ {
			for j := i + 1; j < len(ts); j++ {
				a, b := ts[i], ts[j]
				p := r.WinProbability(a.TIRNormalized, b.TIRNormalized)
				mp := model.MatchPrediction{
					Event:           e,
					TeamA:           a.Team,
					TeamB:           b.Team,
					TeamATIR:        a.TIRNormalized,
					TeamBTIR:        b.TIRNormalized,
					TeamAWinProb:    p,
					PredictedWinner: b.Team,
				}
				if p > 0.5 {
					mp.PredictedWinner = a.Team
				}
				if winner := h2h.winner(e, a.Team, b.Team); winner != "" {
					mp.ActualWinner = winner
					mp.HasGroundTruth = true
					mp.IsCorrect = winner == mp.PredictedWinner
					acc.Evaluated++
					if mp.IsCorrect {
						acc.Correct++
					}
				}
				preds = append(preds, mp)
			}
		}
	}
	return preds, acc
}

type pairKey struct {
	event  string
	lo, hi string
}

func newPairKey(event, a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{event: event, lo: a, hi: b}
}

// h2hTable counts the rounds each team of a pair won against the other.
type h2hTable map[pairKey]map[string]int

func headToHead(outcomes []model.RoundOutcome) h2hTable {
	t := make(h2hTable)
	for i := range outcomes {
		o := &outcomes[i]
		if o.CTTeam == "" || o.TTeam == "" {
			continue
		}
		w := o.WinnerTeam()
		if w != o.CTTeam && w != o.TTeam {
			continue
		}
		k := newPairKey(o.Event, o.CTTeam, o.TTeam)
		if t[k] == nil {
			t[k] = make(map[string]int, 2)
		}
		t[k][w]++
	}
	return t
}

// winner returns the team with more head-to-head round wins, or "" on a
// tie or when the pair never met.
func (t h2hTable) winner(event, a, b string) string {
	wins := t[newPairKey(event, a, b)]
	switch {
	case wins[a] > wins[b]:
		return a
	case wins[b] > wins[a]:
		return b
	}
	return ""
}
