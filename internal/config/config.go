// Package config holds every tunable of the rating pipeline: storage paths,
// learner settings and the full set of scoring constants.
package config

import (
	"fmt"

	"github.com/pable/cs-impact/internal/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// WeightsDir is where learned weight tables are written.
	WeightsDir string `koanf:"weights_dir"`

	// MetricsNamespace prefixes the degraded-mode counters written by
	// --metrics-out.
	MetricsNamespace string `koanf:"metrics_namespace"`

	Deriver    Deriver    `koanf:"deriver"`
	Classifier Classifier `koanf:"classifier"`
	Scoring    Scoring    `koanf:"scoring"`
	Learner    Learner    `koanf:"learner"`
	TIR        TIR        `koanf:"tir"`
}

// Deriver holds the metric deriver constants.
type Deriver struct {
	// ConsistencyClip bounds the relative kd deviation before it is
	// subtracted from 1.
	ConsistencyClip float64 `koanf:"consistency_clip"`

	// Impact signal weights for impact_score.
	HeadshotWeight     float64 `koanf:"headshot_weight"`
	WallbangWeight     float64 `koanf:"wallbang_weight"`
	ThroughSmokeWeight float64 `koanf:"through_smoke_weight"`
	NoScopeWeight      float64 `koanf:"no_scope_weight"`
	BlindWeight        float64 `koanf:"blind_weight"`

	// Fallback impact_score = FallbackKD*kd + FallbackFKS*first_kill_success.
	FallbackKD  float64 `koanf:"fallback_kd"`
	FallbackFKS float64 `koanf:"fallback_fks"`
}

// Classifier holds the heuristic role thresholds.
type Classifier struct {
	AWPKD          float64 `koanf:"awp_kd"`
	EntryFKS       float64 `koanf:"entry_fks"`
	SupportFlashEf float64 `koanf:"support_flash_efficiency"`
}

// Scoring holds the PIV scorer constants.
type Scoring struct {
	RCSShare   float64 `koanf:"rcs_share"`
	ICFShare   float64 `koanf:"icf_share"`
	SCShare    float64 `koanf:"sc_share"`
	BasicShare float64 `koanf:"basic_share"`

	KDThreshold float64 `koanf:"kd_threshold"`
	KDSlope     float64 `koanf:"kd_slope"`
	KDCap       float64 `koanf:"kd_cap"`

	PIVMin float64 `koanf:"piv_min"`
	PIVMax float64 `koanf:"piv_max"`

	// RoleModifiers multiplies raw PIV by role; roles not listed use 1.0.
	RoleModifiers map[string]float64 `koanf:"role_modifiers"`

	ICFBase              float64 `koanf:"icf_base"`
	ICFBaseIGL           float64 `koanf:"icf_base_igl"`
	ICFKDSlope           float64 `koanf:"icf_kd_slope"`
	ICFKDBonusCap        float64 `koanf:"icf_kd_bonus_cap"`
	ICFConsistencyWeight float64 `koanf:"icf_consistency_weight"`
	ICFCap               float64 `koanf:"icf_cap"`

	// SC for roles without a dedicated formula.
	SCDefault float64 `koanf:"sc_default"`
	SCIGL     float64 `koanf:"sc_igl"`

	// RCS used when a role has no applicable metric.
	RCSNeutral float64 `koanf:"rcs_neutral"`

	IGL IGLBaseline `koanf:"igl"`
}

// IGLBaseline is the fixed leadership sub-score profile blended into an IGL's PIV.
type IGLBaseline struct {
	RCS   float64 `koanf:"rcs"`
	ICF   float64 `koanf:"icf"`
	SC    float64 `koanf:"sc"`
	KD    float64 `koanf:"kd"`
	Basic float64 `koanf:"basic"`

	// Share of the IGL sub-score in the final PIV; the remainder is split
	// evenly between the two sides.
	Share float64 `koanf:"share"`
}

// Learner holds the weight learner settings.
type Learner struct {
	MinSamples int     `koanf:"min_samples"`
	RidgeAlpha float64 `koanf:"ridge_alpha"`

	// DefaultWeights are the raw fallback weights, normalised on use.
	DefaultWeights map[string]float64 `koanf:"default_weights"`
}

// TIR holds the rating and prediction settings.
type TIR struct {
	DisplayMin float64 `koanf:"display_min"`
	DisplayMax float64 `koanf:"display_max"`
	Steepness  float64 `koanf:"steepness"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		DBPath:           "csimpact.db",
		WeightsDir:       "weights",
		MetricsNamespace: "csimpact",
		Deriver: Deriver{
			ConsistencyClip:    0.9,
			HeadshotWeight:     0.30,
			WallbangWeight:     0.20,
			ThroughSmokeWeight: 0.20,
			NoScopeWeight:      0.15,
			BlindWeight:        0.15,
			FallbackKD:         0.5,
			FallbackFKS:        0.3,
		},
		Classifier: Classifier{
			AWPKD:          1.3,
			EntryFKS:       0.6,
			SupportFlashEf: 0.3,
		},
		Scoring: Scoring{
			RCSShare:    0.35,
			ICFShare:    0.25,
			SCShare:     0.25,
			BasicShare:  0.15,
			KDThreshold: 1.3,
			KDSlope:     0.15,
			KDCap:       1.3,
			PIVMin:      0.5,
			PIVMax:      4.0,
			RoleModifiers: map[string]float64{
				"AWP":        0.90,
				"Support":    1.08,
				"IGL":        1.05,
				"Spacetaker": 1.03,
			},
			ICFBase:              0.8,
			ICFBaseIGL:           0.7,
			ICFKDSlope:           0.15,
			ICFKDBonusCap:        0.2,
			ICFConsistencyWeight: 0.1,
			ICFCap:               0.95,
			SCDefault:            0.6,
			SCIGL:                0.8,
			RCSNeutral:           0.5,
			IGL: IGLBaseline{
				RCS:   0.7,
				ICF:   0.75,
				SC:    0.85,
				KD:    1.0,
				Basic: 0.5,
				Share: 0.5,
			},
		},
		Learner: Learner{
			MinSamples: 10,
			RidgeAlpha: 1.0,
			DefaultWeights: map[string]float64{
				"kd":                    0.30,
				"piv":                   0.40,
				"icf":                   0.30,
				"first_kill_success":    0.25,
				"flash_efficiency":      0.20,
				"utility_effectiveness": 0.15,
				"impact_score":          0.30,
				"role_balance":          0.20,
				"role_diversity":        0.10,
			},
		},
		TIR: TIR{
			DisplayMin: 70,
			DisplayMax: 130,
			Steepness:  5,
		},
	}
}

// RoleModifier returns the configured multiplier for r, or 1.
func (s *Scoring) RoleModifier(r model.Role) float64 {
	if m, ok := s.RoleModifiers[r.String()]; ok {
		return m
	}
	return 1.0
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	s := &c.Scoring
	if s.RCSShare < 0 || s.ICFShare < 0 || s.SCShare < 0 || s.BasicShare < 0 {
		return fmt.Errorf("%w: sub-score shares must be non-negative", ErrInvalidConfig)
	}
	if s.RCSShare+s.ICFShare+s.SCShare+s.BasicShare <= 0 {
		return fmt.Errorf("%w: sub-score shares sum to zero", ErrInvalidConfig)
	}
	if s.PIVMin >= s.PIVMax {
		return fmt.Errorf("%w: piv_min %.2f must be below piv_max %.2f", ErrInvalidConfig, s.PIVMin, s.PIVMax)
	}
	if s.ICFCap < 0 || s.ICFCap > 1 {
		return fmt.Errorf("%w: icf_cap %.2f outside [0,1]", ErrInvalidConfig, s.ICFCap)
	}
	if s.IGL.Share < 0 || s.IGL.Share > 1 {
		return fmt.Errorf("%w: igl.share %.2f outside [0,1]", ErrInvalidConfig, s.IGL.Share)
	}
	for name := range s.RoleModifiers {
		if _, ok := model.ParseRole(name); !ok {
			return fmt.Errorf("%w: role_modifiers: unknown role %q", ErrInvalidConfig, name)
		}
	}
	if c.Learner.MinSamples < 2 {
		return fmt.Errorf("%w: min_samples must be at least 2", ErrInvalidConfig)
	}
	if c.Learner.RidgeAlpha < 0 {
		return fmt.Errorf("%w: ridge_alpha must be non-negative", ErrInvalidConfig)
	}
	for name, w := range c.Learner.DefaultWeights {
		if _, ok := model.ParseFeature(name); !ok {
			return fmt.Errorf("%w: default_weights: unknown feature %q", ErrInvalidConfig, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: default_weights: %s is negative", ErrInvalidConfig, name)
		}
	}
	if c.TIR.DisplayMin >= c.TIR.DisplayMax {
		return fmt.Errorf("%w: tir display band [%.0f,%.0f] is empty", ErrInvalidConfig, c.TIR.DisplayMin, c.TIR.DisplayMax)
	}
	if c.TIR.Steepness <= 0 {
		return fmt.Errorf("%w: steepness must be positive", ErrInvalidConfig)
	}
	return nil
}
