package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then the scoring constants match the documented model", func() {
			s := cfg.Scoring
			convey.So(s.RCSShare+s.ICFShare+s.SCShare+s.BasicShare, convey.ShouldAlmostEqual, 1.0, 1e-12)
			convey.So(s.PIVMin, convey.ShouldEqual, 0.5)
			convey.So(s.PIVMax, convey.ShouldEqual, 4.0)
			convey.So(s.RoleModifier(model.RoleAWP), convey.ShouldEqual, 0.90)
			convey.So(s.RoleModifier(model.RoleAnchor), convey.ShouldEqual, 1.0)
			convey.So(s.ICFCap, convey.ShouldEqual, 0.95)
		})

		convey.Convey("Then the learner and TIR defaults are set", func() {
			convey.So(cfg.Learner.MinSamples, convey.ShouldEqual, 10)
			convey.So(cfg.Learner.RidgeAlpha, convey.ShouldEqual, 1.0)
			convey.So(cfg.Learner.DefaultWeights, convey.ShouldHaveLength, 9)
			convey.So(cfg.TIR.Steepness, convey.ShouldEqual, 5)
		})

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"inverted clamp", func(c *config.Config) { c.Scoring.PIVMin = 5 }},
		{"unknown role", func(c *config.Config) { c.Scoring.RoleModifiers["Sniper"] = 1.1 }},
		{"tiny sample", func(c *config.Config) { c.Learner.MinSamples = 1 }},
		{"negative alpha", func(c *config.Config) { c.Learner.RidgeAlpha = -1 }},
		{"unknown feature", func(c *config.Config) { c.Learner.DefaultWeights["aim"] = 0.1 }},
		{"empty band", func(c *config.Config) { c.TIR.DisplayMax = c.TIR.DisplayMin }},
		{"zero steepness", func(c *config.Config) { c.TIR.Steepness = 0 }},
		{"zero shares", func(c *config.Config) { c.Scoring = config.Scoring{PIVMax: 4, ICFCap: 0.9} }},
	}

	convey.Convey("Given invalid configurations", t, func() {
		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then Validate returns ErrInvalidConfig", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the defaults come back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DBPath, convey.ShouldEqual, "csimpact.db")
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "csimpact")
				convey.So(cfg.Scoring.KDThreshold, convey.ShouldEqual, 1.3)
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := writeConfig(t, `
db_path: ratings.db
scoring:
  kd_threshold: 1.4
  role_modifiers:
    awp: 0.8
learner:
  min_samples: 20
`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DBPath, convey.ShouldEqual, "ratings.db")
				convey.So(cfg.Scoring.KDThreshold, convey.ShouldEqual, 1.4)
				convey.So(cfg.Scoring.RoleModifier(model.RoleAWP), convey.ShouldEqual, 0.8)
				convey.So(cfg.Scoring.RoleModifier(model.RoleSupport), convey.ShouldEqual, 1.08)
				convey.So(cfg.Learner.MinSamples, convey.ShouldEqual, 20)
				convey.So(cfg.Scoring.PIVMax, convey.ShouldEqual, 4.0)
			})
		})

		convey.Convey("When env vars are set on top of a file", func() {
			path := writeConfig(t, "log_level: warn\nscoring:\n  kd_slope: 0.2\n")
			_ = os.Setenv("CSIMPACT_CONFIG", path)
			_ = os.Setenv("CSIMPACT_LOG_LEVEL", "debug")
			_ = os.Setenv("CSIMPACT_TIR__STEEPNESS", "7.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Scoring.KDSlope, convey.ShouldEqual, 0.2)
				convey.So(cfg.TIR.Steepness, convey.ShouldEqual, 7.5)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file holds an invalid value", func() {
			path := writeConfig(t, "tir:\n  steepness: -1\n")
			_, err := config.Load(ctx, path)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "csimpact.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, k := range []string{"CSIMPACT_CONFIG", "CSIMPACT_LOG_LEVEL", "CSIMPACT_TIR__STEEPNESS"} {
		_ = os.Unsetenv(k)
	}
}
