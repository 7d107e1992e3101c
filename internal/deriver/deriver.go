// Package deriver computes ratio metrics from raw per-player counting stats.
package deriver

import (
	"fmt"
	"math"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"gonum.org/v1/gonum/stat"
)

// Deriver computes the derived metric columns. It holds no state between calls.
type Deriver struct {
	cfg config.Deriver
}

// New returns a Deriver using the given constants.
func New(cfg config.Deriver) *Deriver {
	return &Deriver{cfg: cfg}
}

type signal struct {
	stat   model.Stat
	weight float64
}

func (d *Deriver) signals() []signal {
	return []signal{
		{model.StatHeadshots, d.cfg.HeadshotWeight},
		{model.StatWallbangKills, d.cfg.WallbangWeight},
		{model.StatThroughSmokeKills, d.cfg.ThroughSmokeWeight},
		{model.StatNoScopeKills, d.cfg.NoScopeWeight},
		{model.StatBlindKills, d.cfg.BlindWeight},
	}
}

// Derive returns a copy of players with every derived metric set. Raw stats
// are never modified and any previously derived values are recomputed, so
// Derive(Derive(x)) == Derive(x).
func (d *Deriver) Derive(players []model.PlayerRecord, rec *diag.Recorder) []model.PlayerRecord {
	out := make([]model.PlayerRecord, len(players))
	var missing, zeroDen counter

	// ---- Pass 1: per-row ratios. ----

	for i := range players {
		p := players[i]
		r := &p.Raw
		dv := model.Derived{Unavailable: make(map[model.Feature]bool)}
		mark := func(f model.Feature, stats model.Stat) {
			if r.Missing.Any(stats) {
				dv.Unavailable[f] = true
				missing.add(string(f))
			}
		}

		// kd: deaths zero or missing divides by 1
		dv.KD = float64(r.Kills) / denom(r.Deaths, r.Present(model.StatDeaths))
		mark(model.FeatureKD, model.StatKills|model.StatDeaths)

		dv.HSPercentage = 100 * float64(r.Headshots) / denom(r.Kills, r.Present(model.StatKills))
		mark(model.FeatureHSPercentage, model.StatKills|model.StatHeadshots)

		var ok bool
		dv.FirstKillSuccess, ok = successRate(r.FirstKills, r.FirstDeaths)
		if !ok {
			zeroDen.add(string(model.FeatureFirstKillSuccess))
		}
		mark(model.FeatureFirstKillSuccess, model.StatFirstKills|model.StatFirstDeaths)
		dv.EntryRatio = dv.FirstKillSuccess
		mark(model.FeatureEntryRatio, model.StatFirstKills|model.StatFirstDeaths)

		// Side rates fall back to the overall rate when the side columns are absent.
		dv.TFirstKillSuccess = d.sideRate(r, model.StatTFirstKills, model.StatTFirstDeaths, dv.FirstKillSuccess, &missing, &zeroDen, model.FeatureTFirstKillSuccess)
		dv.CTFirstKillSuccess = d.sideRate(r, model.StatCTFirstKills, model.StatCTFirstDeaths, dv.FirstKillSuccess, &missing, &zeroDen, model.FeatureCTFirstKillSuccess)
		if dv.Unavailable[model.FeatureFirstKillSuccess] {
			if r.Missing.Any(model.StatTFirstKills | model.StatTFirstDeaths) {
				dv.Unavailable[model.FeatureTFirstKillSuccess] = true
			}
			if r.Missing.Any(model.StatCTFirstKills | model.StatCTFirstDeaths) {
				dv.Unavailable[model.FeatureCTFirstKillSuccess] = true
			}
		}

		dv.FlashEfficiency = float64(r.AssistedFlashes) / denom(r.FlashesThrown, r.Present(model.StatFlashesThrown))
		mark(model.FeatureFlashEfficiency, model.StatFlashesThrown|model.StatAssistedFlashes)

		dv.TotalUtility = r.FlashesThrown + r.HEThrown + r.SmokesThrown + r.InfernosThrown
		dv.UtilityEffectiveness = float64(r.Assists) / float64(dv.TotalUtility+1)
		utilityStats := model.StatFlashesThrown | model.StatHEThrown | model.StatSmokesThrown | model.StatInfernosThrown
		if !r.Present(model.StatAssists) || r.Missing.Has(utilityStats) {
			dv.Unavailable[model.FeatureUtilityEffectiveness] = true
			missing.add(string(model.FeatureUtilityEffectiveness))
		}

		dv.UtilityDmgPerRound = float64(r.UtilityDamage) / denom(r.RoundsPlayed, r.Present(model.StatRoundsPlayed))
		mark(model.FeatureUtilityDmgPerRound, model.StatUtilityDamage|model.StatRoundsPlayed)

		p.Derived = dv
		out[i] = p
	}

	// ---- Pass 2: dataset-relative columns. ----

	d.scaleUtility(out, rec)
	d.consistency(out, rec)
	d.impact(out, &missing, rec)

	missing.flush(rec, diag.ErrMissingInput)
	zeroDen.flush(rec, diag.ErrDegenerateRange)
	rec.Rows(diag.StageDerive, len(out))
	return out
}

func (d *Deriver) sideRate(r *model.RawStats, fk, fd model.Stat, overall float64, missing, zeroDen *counter, f model.Feature) float64 {
	if r.Missing.Any(fk | fd) {
		missing.add(string(f))
		return overall
	}
	v, ok := successRate(r.Get(fk), r.Get(fd))
	if !ok {
		zeroDen.add(string(f))
	}
	return v
}

// scaleUtility divides utility_effectiveness by its dataset maximum.
func (d *Deriver) scaleUtility(out []model.PlayerRecord, rec *diag.Recorder) {
	maxUE := math.Inf(-1)
	for i := range out {
		maxUE = math.Max(maxUE, out[i].Derived.UtilityEffectiveness)
	}
	if maxUE <= 0 {
		if len(out) > 0 {
			rec.Note(diag.StageDerive, diag.ErrDegenerateRange, 1, "utility_effectiveness: dataset maximum is zero")
		}
		return
	}
	for i := range out {
		out[i].Derived.UtilityEffectiveness /= maxUE
	}
}

// consistency scores each player's kd against the mean kd of their
// (event, team) group.
func (d *Deriver) consistency(out []model.PlayerRecord, rec *diag.Recorder) {
	kds := make(map[model.TeamKey][]float64)
	for i := range out {
		k := out[i].TeamKey()
		kds[k] = append(kds[k], out[i].Derived.KD)
	}
	means := make(map[model.TeamKey]float64, len(kds))
	for k, xs := range kds {
		means[k] = stat.Mean(xs, nil)
	}

	flat := 0
	for i := range out {
		mean := means[out[i].TeamKey()]
		dv := &out[i].Derived
		if mean <= 0 {
			dv.Consistency = 1
			flat++
		} else {
			dev := math.Abs(dv.KD-mean) / mean
			dv.Consistency = 1 - clip(dev, 0, d.cfg.ConsistencyClip)
		}
		if dv.Unavailable[model.FeatureKD] {
			dv.Unavailable[model.FeatureConsistency] = true
		}
	}
	rec.Note(diag.StageDerive, diag.ErrDegenerateRange, flat, "consistency: team mean kd is zero")
}

// impact combines the min-max normalised secondary kill signals available
// for each row, weighted and renormalised by the weights actually used.
func (d *Deriver) impact(out []model.PlayerRecord, missing *counter, rec *diag.Recorder) {
	sigs := d.signals()

	type bounds struct {
		lo, hi float64
		seen   bool
	}
	rng := make([]bounds, len(sigs))
	for i := range out {
		r := &out[i].Raw
		for j, s := range sigs {
			if !r.Present(s.stat) {
				continue
			}
			v := float64(r.Get(s.stat))
			b := &rng[j]
			if !b.seen {
				b.lo, b.hi, b.seen = v, v, true
				continue
			}
			b.lo = math.Min(b.lo, v)
			b.hi = math.Max(b.hi, v)
		}
	}
	for j, b := range rng {
		if b.seen && b.hi == b.lo {
			rec.Note(diag.StageDerive, diag.ErrDegenerateRange, 1,
				fmt.Sprintf("impact_score: %s has a single value", statName(sigs[j].stat)))
		}
	}

	for i := range out {
		r := &out[i].Raw
		dv := &out[i].Derived
		var sum, wsum float64
		for j, s := range sigs {
			if !r.Present(s.stat) || s.weight <= 0 {
				continue
			}
			b := rng[j]
			norm := 0.5
			if b.hi > b.lo {
				norm = (float64(r.Get(s.stat)) - b.lo) / (b.hi - b.lo)
			}
			sum += s.weight * norm
			wsum += s.weight
		}
		if wsum > 0 {
			dv.ImpactScore = sum / wsum
			continue
		}
		dv.ImpactScore = d.cfg.FallbackKD*dv.KD + d.cfg.FallbackFKS*dv.FirstKillSuccess
		dv.Unavailable[model.FeatureImpactScore] = true
		missing.add(string(model.FeatureImpactScore))
	}
}

// denom returns v as a divisor, substituting 1 when v is zero or absent.
func denom(v int, present bool) float64 {
	if !present || v == 0 {
		return 1
	}
	return float64(v)
}

// successRate returns won/(won+lost), or 0.5 and false when there were no duels.
func successRate(won, lost int) (float64, bool) {
	total := won + lost
	if total <= 0 {
		return 0.5, false
	}
	return float64(won) / float64(total), true
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func statName(s model.Stat) string {
	for name, st := range model.StatColumns {
		if st == s {
			return name
		}
	}
	return "?"
}

// counter tallies substitutions per metric so each metric is reported once
// per run with its row count.
type counter struct {
	order []string
	n     map[string]int
}

func (c *counter) add(metric string) {
	if c.n == nil {
		c.n = make(map[string]int)
	}
	if _, ok := c.n[metric]; !ok {
		c.order = append(c.order, metric)
	}
	c.n[metric]++
}

func (c *counter) flush(rec *diag.Recorder, kind error) {
	for _, m := range c.order {
		rec.Note(diag.StageDerive, kind, c.n[m], m)
	}
}
