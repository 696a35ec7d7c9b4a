package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SDKKey              string   `yaml:"sdkKey"`
	EnabledInstallTypes []string `yaml:"enabledInstallTypes"` // nil means all, an empty list disables
	Redacted            bool     `yaml:"redacted"`
	InstallType         string   `yaml:"installType"` // install type of this process
	Outputs             []string `yaml:"outputs"`     // enabled backends: log, kafka, postgres, http
	LogLevel            string   `yaml:"logLevel"`
	LogJSON             bool     `yaml:"logJSON"`
	TestMode            bool     `yaml:"testMode"`
}

var ErrMissingSDKKey = errors.New("config: PENDO_SDK_KEY is required")

func defaults() Config {
	return Config{
		Redacted:    true,
		InstallType: "fresh_install",
		Outputs:     []string{"log"},
		LogLevel:    "info",
	}
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}

func getStringSlice(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load reads CONFIG_FILE (YAML) when set, then applies environment overrides.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.SDKKey = getOr("PENDO_SDK_KEY", cfg.SDKKey)
	cfg.EnabledInstallTypes = getStringSlice("ENABLED_INSTALL_TYPES", cfg.EnabledInstallTypes)
	cfg.Redacted = getBool("REDACTED", cfg.Redacted)
	cfg.InstallType = getOr("INSTALL_TYPE", cfg.InstallType)
	cfg.Outputs = getStringSlice("OUTPUTS", cfg.Outputs)
	cfg.LogLevel = getOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogJSON = getBool("LOG_JSON", cfg.LogJSON)
	cfg.TestMode = getBool("TEST_MODE", cfg.TestMode)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SDKKey) == "" {
		return ErrMissingSDKKey
	}
	if len(c.Outputs) == 0 {
		return errors.New("config: at least one output is required")
	}
	return nil
}
