// Package config loads the engine's run configuration (spec.md §6) from a
// JSON file with environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// #region config

// Config is the root run configuration for the engine.
type Config struct {
	MaxTurnsPerEpisode                int     `json:"max_turns_per_episode"                mapstructure:"max_turns_per_episode"`
	MaxEpisodeTokens                  int     `json:"max_episode_tokens"                   mapstructure:"max_episode_tokens"`
	MaxConcurrency                    int     `json:"max_concurrency"                      mapstructure:"max_concurrency"`
	EpochSize                         int     `json:"epoch_size"                           mapstructure:"epoch_size"`
	MutationVariants                  int     `json:"mutation_variants"                    mapstructure:"mutation_variants"`
	ShadowTrialCount                  int     `json:"shadow_trial_count"                   mapstructure:"shadow_trial_count"`
	ImprovementMargin                 float64 `json:"improvement_margin"                   mapstructure:"improvement_margin"`
	AcceptanceLCBLambda               float64 `json:"acceptance_lcb_lambda"                mapstructure:"acceptance_lcb_lambda"`
	AcceptancePValueThreshold         float64 `json:"acceptance_p_value_threshold"         mapstructure:"acceptance_p_value_threshold"`
	CreationPatience                  int     `json:"creation_patience"                    mapstructure:"creation_patience"`
	MaxActiveCreatedAgents            int     `json:"max_active_created_agents"            mapstructure:"max_active_created_agents"`
	CreationCooldownGenerations       int     `json:"creation_cooldown_generations"        mapstructure:"creation_cooldown_generations"`
	RequireHumanApprovalForCreation   bool    `json:"require_human_approval_for_creation"  mapstructure:"require_human_approval_for_creation"`
	MaxValidationRetries              int     `json:"max_validation_retries"               mapstructure:"max_validation_retries"`
	ForcedConcessionThreshold         int     `json:"forced_concession_threshold"          mapstructure:"forced_concession_threshold"`
	ScoutSweepIntervalGenerations     int     `json:"scout_sweep_interval_generations"      mapstructure:"scout_sweep_interval_generations"`
	InfoDisruptorFrequency            int     `json:"info_disruptor_frequency"             mapstructure:"info_disruptor_frequency"`
	SummarizationFrequency            int     `json:"summarization_frequency"              mapstructure:"summarization_frequency"`
	MaxGenerations                    int     `json:"max_generations"                      mapstructure:"max_generations"`
}

// Default returns the configuration with every default from spec.md §6.
func Default() Config {
	return Config{
		MaxTurnsPerEpisode:              20,
		MaxEpisodeTokens:                50000,
		MaxConcurrency:                  5,
		EpochSize:                       10,
		MutationVariants:                3,
		ShadowTrialCount:                10,
		ImprovementMargin:               0.5,
		AcceptanceLCBLambda:             1.0,
		AcceptancePValueThreshold:       0.05,
		CreationPatience:                5,
		MaxActiveCreatedAgents:          3,
		CreationCooldownGenerations:     3,
		RequireHumanApprovalForCreation: true,
		MaxValidationRetries:            3,
		ForcedConcessionThreshold:       2,
		ScoutSweepIntervalGenerations:   5,
		InfoDisruptorFrequency:          3,
		SummarizationFrequency:          5,
		MaxGenerations:                  100,
	}
}

// #endregion config

// #region load

// Load reads a JSON config file (defaulting to "engine.config.json" under
// root), overlays env vars prefixed ADAPTIVE_, and fills any unset field
// from Default().
func Load(root string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("adaptive")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind every config key so env vars reach Unmarshal even when the
	// key is absent from the file.
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		_ = v.BindEnv(t.Field(i).Tag.Get("mapstructure"))
	}

	path := v.GetString("config")
	if path == "" {
		path = filepath.Join(root, "engine.config.json")
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// no file on disk: defaults + env vars only
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that max_turns_per_episode, max_concurrency,
// epoch_size, max_generations and max_validation_retries are positive;
// no other key is checked.
func (c Config) Validate() error {
	if c.MaxTurnsPerEpisode <= 0 {
		return fmt.Errorf("max_turns_per_episode must be > 0")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be > 0")
	}
	if c.EpochSize <= 0 {
		return fmt.Errorf("epoch_size must be > 0")
	}
	if c.MaxGenerations <= 0 {
		return fmt.Errorf("max_generations must be > 0")
	}
	if c.MaxValidationRetries <= 0 {
		return fmt.Errorf("max_validation_retries must be > 0")
	}
	return nil
}

// #endregion load
