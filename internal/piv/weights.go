package piv

import (
	"fmt"
	"sort"

	"github.com/pable/cs-impact/internal/model"
)

// Metrics a player record can offer to the role core score.
const (
	MetricKD               = "kd"
	MetricFirstKillSuccess = "first_kill_success"
	MetricUtility          = "utility"
)

// knownMetrics lists every metric name accepted in a weight table. Only kd,
// first_kill_success and utility are backed by record fields today; the
// others are recognised so that tables carrying them validate, and they are
// skipped at scoring time.
var knownMetrics = map[string]bool{
	MetricKD:               true,
	MetricFirstKillSuccess: true,
	MetricUtility:          true,
	"site_lockdown":        true,
	"flanking":             true,
	"rotation":             true,
	"assists":              true,
	"retake":               true,
	"site_defense":         true,
	"rotation_timing":      true,
	"leadership":           true,
}

// SideWeights maps metric name to weight for one role on one side.
type SideWeights map[string]float64

// WeightTable holds the role core score weights per role and side.
type WeightTable map[model.Role]map[model.Side]SideWeights

// fallbackWeights apply to a role/side the table does not cover.
var fallbackWeights = SideWeights{MetricKD: 0.5, MetricFirstKillSuccess: 0.3, MetricUtility: 0.2}

// DefaultWeights returns the built-in role core score table.
func DefaultWeights() WeightTable {
	t, ct := model.SideT, model.SideCT
	return WeightTable{
		model.RoleAWP: {
			t:  {MetricKD: 0.4, MetricFirstKillSuccess: 0.4, MetricUtility: 0.2},
			ct: {MetricKD: 0.3, MetricFirstKillSuccess: 0.3, MetricUtility: 0.1, "site_lockdown": 0.3},
		},
		model.RoleSpacetaker: {
			t:  {MetricKD: 0.2, MetricFirstKillSuccess: 0.5, MetricUtility: 0.3},
			ct: {MetricKD: 0.4, MetricFirstKillSuccess: 0.3, MetricUtility: 0.3},
		},
		model.RoleLurker: {
			t:  {MetricKD: 0.4, MetricFirstKillSuccess: 0.1, MetricUtility: 0.1, "flanking": 0.4},
			ct: {MetricKD: 0.4, MetricFirstKillSuccess: 0.2, MetricUtility: 0.2, "rotation": 0.2},
		},
		model.RoleSupport: {
			t:  {MetricKD: 0.2, MetricFirstKillSuccess: 0.1, MetricUtility: 0.5, "assists": 0.2},
			ct: {MetricKD: 0.2, MetricFirstKillSuccess: 0.2, MetricUtility: 0.4, "retake": 0.2},
		},
		model.RoleAnchor: {
			t:  {MetricKD: 0.3, MetricFirstKillSuccess: 0.3, MetricUtility: 0.4},
			ct: {MetricKD: 0.3, MetricFirstKillSuccess: 0.2, MetricUtility: 0.2, "site_defense": 0.3},
		},
		model.RoleRotator: {
			t:  {MetricKD: 0.3, MetricFirstKillSuccess: 0.3, MetricUtility: 0.4},
			ct: {MetricKD: 0.3, MetricFirstKillSuccess: 0.2, MetricUtility: 0.2, "rotation_timing": 0.3},
		},
		model.RoleIGL: {
			t:  {MetricKD: 0.1, MetricFirstKillSuccess: 0.1, MetricUtility: 0.3, "leadership": 0.5},
			ct: {MetricKD: 0.1, MetricFirstKillSuccess: 0.1, MetricUtility: 0.3, "leadership": 0.5},
		},
	}
}

// Set assigns one weight, creating the role and side maps as needed.
func (w WeightTable) Set(role model.Role, side model.Side, metric string, weight float64) {
	if w[role] == nil {
		w[role] = make(map[model.Side]SideWeights)
	}
	if w[role][side] == nil {
		w[role][side] = make(SideWeights)
	}
	w[role][side][metric] = weight
}

// For returns the weights for a role on a side, or the fallback weights.
func (w WeightTable) For(role model.Role, side model.Side) SideWeights {
	if w.Covers(role, side) {
		return w[role][side]
	}
	return fallbackWeights
}

// Covers reports whether the table has its own weights for role on side.
func (w WeightTable) Covers(role model.Role, side model.Side) bool {
	return len(w[role][side]) > 0
}

// Uncovered lists the role/side pairs served by the fallback weights, as
// "Role/Side" in role order.
func (w WeightTable) Uncovered() []string {
	var out []string
	for _, role := range model.Roles() {
		for _, side := range []model.Side{model.SideT, model.SideCT} {
			if !w.Covers(role, side) {
				out = append(out, role.String()+"/"+side.String())
			}
		}
	}
	return out
}

// Validate checks every role, side, metric and weight in the table.
func (w WeightTable) Validate() error {
	for role, sides := range w {
		if !role.Valid() {
			return fmt.Errorf("%w: role id %d", ErrInvalidWeights, int(role))
		}
		for side, sw := range sides {
			if side != model.SideT && side != model.SideCT {
				return fmt.Errorf("%w: %s: side %d", ErrInvalidWeights, role, int(side))
			}
			for metric, v := range sw {
				if !knownMetrics[metric] {
					return fmt.Errorf("%w: %s/%s: unknown metric %q", ErrInvalidWeights, role, side, metric)
				}
				if v < 0 {
					return fmt.Errorf("%w: %s/%s: %s weight %.3f is negative", ErrInvalidWeights, role, side, metric, v)
				}
			}
		}
	}
	return nil
}

// metricNames returns the metric names of sw in sorted order.
func (sw SideWeights) metricNames() []string {
	names := make([]string, 0, len(sw))
	for m := range sw {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}
