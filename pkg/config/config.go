// Package config provides a reusable loader for CVM node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cascoin/cvm/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a CVM-bearing node. It mirrors the
// structure of the YAML files under cmd/config.
type Config struct {
	Chain struct {
		NetworkID     string `mapstructure:"network_id" json:"network_id"`
		ValidatorAddr string `mapstructure:"validator_addr" json:"validator_addr"`
		ListenAddr    string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"chain" json:"chain"`

	HAT struct {
		WoTMaxDepth        int     `mapstructure:"wot_max_depth" json:"wot_max_depth"`
		StakeAgeCapDays    int     `mapstructure:"stake_age_cap_days" json:"stake_age_cap_days"`
		DeterminismEpsilon float64 `mapstructure:"determinism_epsilon" json:"determinism_epsilon"`
	} `mapstructure:"hat" json:"hat"`

	Consensus struct {
		MinValidators            int `mapstructure:"min_validators" json:"min_validators"`
		ValidationTimeoutSeconds int `mapstructure:"validation_timeout_seconds" json:"validation_timeout_seconds"`
		WoTCoverageThresholdPct  int `mapstructure:"wot_coverage_threshold_pct" json:"wot_coverage_threshold_pct"`
	} `mapstructure:"consensus" json:"consensus"`

	DoSGuard struct {
		BaseBanSeconds  int `mapstructure:"base_ban_seconds" json:"base_ban_seconds"`
		ViolationsToBan int `mapstructure:"violations_to_ban" json:"violations_to_ban"`
	} `mapstructure:"dos_guard" json:"dos_guard"`

	Storage struct {
		DBPath    string `mapstructure:"db_path" json:"db_path"`
		DBBackend string `mapstructure:"db_backend" json:"db_backend"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, utils.Wrap(err, "load .env")
	}

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("CVM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up CVM_* overrides (e.g. CVM_STORAGE_DB_PATH), including those from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CVM_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CVM_ENV", ""))
}

// YAML renders c back to its on-disk YAML form, e.g. for `cvmd config show`
// to print the fully resolved configuration (defaults + file + env
// overrides) rather than just the file on disk.
func (c *Config) YAML() ([]byte, error) {
	// yaml.v3 ignores the json/mapstructure tags, so round-trip through JSON
	// to emit the same snake_case keys as the files under cmd/config.
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, utils.Wrap(err, "marshal config")
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, utils.Wrap(err, "marshal config")
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, utils.Wrap(err, "marshal config")
	}
	return out, nil
}
