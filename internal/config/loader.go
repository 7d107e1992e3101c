package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pable/cs-impact/internal/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CSIMPACT_"

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file: path, or $CSIMPACT_CONFIG when path is empty
//  3. env: CSIMPACT_LOG_LEVEL, CSIMPACT_SCORING__KD_THRESHOLD, ...
//
// A double underscore in an env name separates nested keys.
func Load(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	canonicalRoleKeys(cfg.Scoring.RoleModifiers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// canonicalRoleKeys rewrites role-modifier keys to their canonical spelling.
// Env and file overrides arrive lower-cased and win over the defaults.
func canonicalRoleKeys(m map[string]float64) {
	for name, v := range m {
		r, ok := model.ParseRole(name)
		if !ok || r.String() == name {
			continue
		}
		m[r.String()] = v
		delete(m, name)
	}
}
