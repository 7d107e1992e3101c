// Package piv computes the role-aware Player Impact Value.
package piv

import (
	"fmt"
	"math"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
	"gonum.org/v1/gonum/floats"
)

// osmPlaceholder is the opponent strength multiplier until opponent ratings
// are available.
const osmPlaceholder = 1.0

// Scorer computes PIV and its sub-scores. The output depends only on the
// player record, the scoring constants and the weight table.
type Scorer struct {
	cfg     config.Scoring
	weights WeightTable
}

// New returns a Scorer. A nil weight table selects DefaultWeights.
func New(cfg config.Scoring, weights WeightTable) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Scorer{cfg: cfg, weights: weights}
}

// Score returns a copy of players with Score populated.
func (s *Scorer) Score(players []model.PlayerRecord, rec *diag.Recorder) []model.PlayerRecord {
	out := make([]model.PlayerRecord, len(players))
	neutral, fallback := 0, 0
	var firstFallback string
	for i := range players {
		p := players[i]
		for _, rs := range []struct {
			role model.Role
			side model.Side
		}{{p.Roles.TRole, model.SideT}, {p.Roles.CTRole, model.SideCT}} {
			if s.weights.Covers(rs.role, rs.side) {
				continue
			}
			if fallback == 0 {
				firstFallback = fmt.Sprintf("role weights: %s/%s not covered; fallback weights used", rs.role, rs.side)
			}
			fallback++
		}
		tSide, tNeutral := s.side(&p, p.Roles.TRole, model.SideT)
		ctSide, ctNeutral := s.side(&p, p.Roles.CTRole, model.SideCT)
		if tNeutral {
			neutral++
		}
		if ctNeutral {
			neutral++
		}
		p.Score = s.combineSides(tSide, ctSide, p.Roles.IsIGL)
		out[i] = p
	}
	rec.Note(diag.StagePIV, diag.ErrMissingInput, neutral, "rcs: no applicable metric; neutral score used")
	rec.Note(diag.StagePIV, diag.ErrUnknownRole, fallback, firstFallback)
	rec.Rows(diag.StagePIV, len(out))
	return out
}

// side scores one side. The bool reports that RCS fell back to neutral.
func (s *Scorer) side(p *model.PlayerRecord, role model.Role, side model.Side) (model.SideScore, bool) {
	d := &p.Derived
	rcs, ok := s.RCS(s.offered(d, side), role, side)
	ss := model.SideScore{
		Role:  role,
		RCS:   rcs,
		ICF:   s.ICF(d, p.Roles.IsIGL),
		SC:    s.SC(d, role, side),
		OSM:   osmPlaceholder,
		Basic: s.Basic(p, role, side),
	}
	ss.PIV = s.Combine(ss.RCS, ss.ICF, ss.SC, ss.OSM, d.KD, ss.Basic, role)
	return ss, !ok
}

// offered returns the RCS metrics this record can supply on a side.
// Metrics marked unavailable are left out.
func (s *Scorer) offered(d *model.Derived, side model.Side) map[string]float64 {
	m := make(map[string]float64, 3)
	if !d.Unavailable[model.FeatureKD] {
		m[MetricKD] = d.KD
	}
	fks, f := d.TFirstKillSuccess, model.FeatureTFirstKillSuccess
	if side == model.SideCT {
		fks, f = d.CTFirstKillSuccess, model.FeatureCTFirstKillSuccess
	}
	if !d.Unavailable[f] {
		m[MetricFirstKillSuccess] = fks
	}
	if !d.Unavailable[model.FeatureUtilityEffectiveness] {
		m[MetricUtility] = d.UtilityEffectiveness
	}
	return m
}

// RCS is the weighted mean of the offered metrics, normalised by the weight
// actually applied. It returns the neutral score and false when no metric
// in the role's table is offered.
func (s *Scorer) RCS(metrics map[string]float64, role model.Role, side model.Side) (float64, bool) {
	sw := s.weights.For(role, side)
	var sum, applied float64
	for _, name := range sw.metricNames() {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		sum += v * sw[name]
		applied += sw[name]
	}
	if applied == 0 {
		return s.cfg.RCSNeutral, false
	}
	return sum / applied, true
}

// ICF is the individual consistency factor, bounded to [0, ICFCap].
func (s *Scorer) ICF(d *model.Derived, isIGL bool) float64 {
	icf := s.cfg.ICFBase
	if isIGL {
		icf = s.cfg.ICFBaseIGL
	}
	if d.KD > s.cfg.KDThreshold {
		icf += math.Min((d.KD-1)*s.cfg.ICFKDSlope, s.cfg.ICFKDBonusCap)
	}
	icf += d.Consistency * s.cfg.ICFConsistencyWeight
	return clamp(icf, 0, s.cfg.ICFCap)
}

// SC is the synergy contribution for a role on a side.
func (s *Scorer) SC(d *model.Derived, role model.Role, side model.Side) float64 {
	switch {
	case role == model.RoleAWP:
		return d.FirstKillSuccess*0.8 + 0.2
	case role == model.RoleSpacetaker && side == model.SideT:
		return d.FirstKillSuccess*0.7 + 0.3
	case role == model.RoleSupport:
		return d.UtilityEffectiveness*0.6 + 0.4
	case role == model.RoleLurker:
		return d.ImpactScore*0.6 + 0.3
	case role == model.RoleAnchor && side == model.SideCT:
		return math.Min(d.KD*0.4+0.4, 0.9)
	case role == model.RoleRotator && side == model.SideCT:
		return (d.KD*0.3+d.UtilityEffectiveness*0.5)*0.8 + 0.2
	case role == model.RoleIGL:
		return s.cfg.SCIGL
	}
	return s.cfg.SCDefault
}

// Basic is the role-specific basic-stat score.
func (s *Scorer) Basic(p *model.PlayerRecord, role model.Role, side model.Side) float64 {
	d := &p.Derived
	switch {
	case role == model.RoleAWP:
		return clamp(d.KD*0.4+d.FirstKillSuccess*0.4+0.2, 0.2, 1.0)
	case role == model.RoleSpacetaker && side == model.SideT:
		return clamp(d.FirstKillSuccess*0.6+d.KD*0.2+0.2, 0.2, 1.0)
	case role == model.RoleSupport:
		assistRatio := 0.5
		if p.Raw.Kills > 0 {
			assistRatio = float64(p.Raw.Assists) / float64(p.Raw.Kills)
		}
		return clamp(d.UtilityEffectiveness*0.5+assistRatio*0.3+0.2, 0.3, 1.0)
	}
	return clamp(d.KD*0.3+0.3, 0.3, 0.9)
}

// Combine folds the sub-scores into a bounded PIV.
func (s *Scorer) Combine(rcs, icf, sc, osm, kd, basic float64, role model.Role) float64 {
	raw := osm * floats.Dot(
		[]float64{rcs, icf, sc, basic},
		[]float64{s.cfg.RCSShare, s.cfg.ICFShare, s.cfg.SCShare, s.cfg.BasicShare},
	)
	kdScaling := 1.0
	if kd > s.cfg.KDThreshold {
		kdScaling = math.Min(1+(kd-s.cfg.KDThreshold)*s.cfg.KDSlope, s.cfg.KDCap)
	}
	return clamp(raw*kdScaling*s.cfg.RoleModifier(role), s.cfg.PIVMin, s.cfg.PIVMax)
}

// combineSides blends the two side scores. An IGL additionally gets a fixed
// leadership sub-score weighted by IGL.Share.
func (s *Scorer) combineSides(t, ct model.SideScore, isIGL bool) model.Score {
	if !isIGL {
		return model.Score{
			RCS: 0.5*t.RCS + 0.5*ct.RCS,
			ICF: 0.5*t.ICF + 0.5*ct.ICF,
			SC:  0.5*t.SC + 0.5*ct.SC,
			OSM: math.Max(t.OSM, ct.OSM),
			PIV: 0.5*t.PIV + 0.5*ct.PIV,
			T:   t,
			CT:  ct,
		}
	}
	b := s.cfg.IGL
	lead := b.Share
	side := (1 - lead) / 2
	iglPIV := s.Combine(b.RCS, b.ICF, b.SC, osmPlaceholder, b.KD, b.Basic, model.RoleIGL)
	return model.Score{
		RCS: lead*b.RCS + side*t.RCS + side*ct.RCS,
		ICF: lead*b.ICF + side*t.ICF + side*ct.ICF,
		SC:  lead*b.SC + side*t.SC + side*ct.SC,
		OSM: osmPlaceholder,
		PIV: lead*iglPIV + side*t.PIV + side*ct.PIV,
		T:   t,
		CT:  ct,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
