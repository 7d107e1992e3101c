package model

import (
	"sort"
	"strings"
)

// Feature names a numeric metric carried by player or team records. The
// string value is the canonical column name used in tables and weight files.
type Feature string

const (
	FeatureKD                   Feature = "kd"
	FeatureHSPercentage         Feature = "hs_percentage"
	FeatureFirstKillSuccess     Feature = "first_kill_success"
	FeatureTFirstKillSuccess    Feature = "t_first_kill_success"
	FeatureCTFirstKillSuccess   Feature = "ct_first_kill_success"
	FeatureFlashEfficiency      Feature = "flash_efficiency"
	FeatureEntryRatio           Feature = "entry_ratio"
	FeatureUtilityEffectiveness Feature = "utility_effectiveness"
	FeatureUtilityDmgPerRound   Feature = "utility_dmg_per_round"
	FeatureConsistency          Feature = "consistency"
	FeatureImpactScore          Feature = "impact_score"
	FeatureRCS                  Feature = "rcs"
	FeatureICF                  Feature = "icf"
	FeatureSC                   Feature = "sc"
	FeatureOSM                  Feature = "osm"
	FeaturePIV                  Feature = "piv"
	FeatureTPIV                 Feature = "t_piv"
	FeatureCTPIV                Feature = "ct_piv"

	// Team-only features.
	FeatureRoleBalance   Feature = "role_balance"
	FeatureRoleDiversity Feature = "role_diversity"
)

// PlayerFeatures lists every numeric player feature in column order.
var PlayerFeatures = []Feature{
	FeatureKD, FeatureHSPercentage,
	FeatureFirstKillSuccess, FeatureTFirstKillSuccess, FeatureCTFirstKillSuccess,
	FeatureFlashEfficiency, FeatureEntryRatio,
	FeatureUtilityEffectiveness, FeatureUtilityDmgPerRound,
	FeatureConsistency, FeatureImpactScore,
	FeatureRCS, FeatureICF, FeatureSC, FeatureOSM,
	FeaturePIV, FeatureTPIV, FeatureCTPIV,
}

// TeamNormalizedFeatures are the player metrics z-scored within each team.
var TeamNormalizedFeatures = []Feature{
	FeatureKD, FeatureImpactScore, FeatureFirstKillSuccess, FeatureFlashEfficiency,
	FeatureUtilityEffectiveness, FeatureConsistency, FeaturePIV,
}

// TeamFeatures lists every feature a TeamRecord carries in Means/Scaled.
func TeamFeatures() []Feature {
	out := make([]Feature, 0, len(PlayerFeatures)+2)
	out = append(out, PlayerFeatures...)
	return append(out, FeatureRoleBalance, FeatureRoleDiversity)
}

// ParseFeature validates a feature name. Matching ignores case and
// surrounding whitespace.
func ParseFeature(s string) (Feature, bool) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FeatureRoleBalance, FeatureRoleDiversity:
		return f, true
	}
	for _, pf := range PlayerFeatures {
		if pf == f {
			return f, true
		}
	}
	return "", false
}

// WeightSource records whether a weight table was fitted or fell back to defaults.
type WeightSource string

const (
	WeightsLearned WeightSource = "learned"
	WeightsDefault WeightSource = "default"
)

// WeightMeta describes how and when a weight table was produced.
type WeightMeta struct {
	Version     string
	FitDate     string
	SampleCount int
	Source      WeightSource
	Alpha       float64
}

// WeightTable maps team features to non-negative weights summing to 1.
type WeightTable struct {
	Meta    WeightMeta
	Weights map[Feature]float64
}

// FeatureWeight is a single (feature, weight) pair.
type FeatureWeight struct {
	Feature Feature
	Weight  float64
}

// Sorted returns the weights ordered by descending weight, ties by name.
func (w WeightTable) Sorted() []FeatureWeight {
	out := make([]FeatureWeight, 0, len(w.Weights))
	for f, v := range w.Weights {
		out = append(out, FeatureWeight{Feature: f, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

// Sum returns the total of all weights.
func (w WeightTable) Sum() float64 {
	var s float64
	for _, v := range w.Weights {
		s += v
	}
	return s
}
