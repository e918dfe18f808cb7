package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LegacyAppSecretEnv is consulted when APP_SECRET is unset.
const LegacyAppSecretEnv = "WHATSAPP_APP_SECRET"

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set are not overridden. An empty path means
// ".env" in the working directory, which may be absent.
func LoadEnvFile(path string) error {
	optional := path == ""
	if optional {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at configPath
// (optional, may be a directory holding config.yaml), then environment
// variables. The result is validated before it is returned.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := resolveConfigPath(configPath)
		if err != nil {
			return nil, err
		}
		if err := verifyConfigHash(absPath); err != nil {
			return nil, err
		}
		if err := loadConfigFile(absPath, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.Webhook.AppSecret == "" {
		cfg.Webhook.AppSecret = os.Getenv(LegacyAppSecretEnv)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveConfigPath returns the absolute path of the config file, looking for
// config.yaml when a directory is given.
func resolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadConfigFile parses a YAML file over cfg. Keys absent from the file keep
// their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	cfg.Service.LogFormat = strings.ToLower(cfg.Service.LogFormat)
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Service.LogMaxSizeMB < 0 || cfg.Service.LogMaxAgeDays < 0 {
		return fmt.Errorf("service.log_max_size_mb and service.log_max_age_days must not be negative")
	}

	if cfg.Webhook.Listen == "" && (cfg.Webhook.Port <= 0 || cfg.Webhook.Port > 65535) {
		return fmt.Errorf("webhook.port must be between 1 and 65535 (got %d)", cfg.Webhook.Port)
	}
	if len(cfg.Webhook.Path) == 0 || cfg.Webhook.Path[0] != '/' {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}

	secrets := map[string]string{
		"webhook.verify_token":     cfg.Webhook.VerifyToken,
		"webhook.app_secret":       cfg.Webhook.AppSecret,
		"whatsapp.access_token":    cfg.WhatsApp.AccessToken,
		"whatsapp.phone_number_id": cfg.WhatsApp.PhoneNumberID,
	}
	for key, value := range secrets {
		if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", key, matches[1])
		}
	}

	if !cfg.WhatsApp.TestMode {
		if cfg.WhatsApp.AccessToken == "" {
			return fmt.Errorf("whatsapp.access_token is required unless whatsapp.test_mode is enabled")
		}
		if cfg.WhatsApp.PhoneNumberID == "" {
			return fmt.Errorf("whatsapp.phone_number_id is required unless whatsapp.test_mode is enabled")
		}
	}
	if cfg.WhatsApp.Timeout <= 0 {
		return fmt.Errorf("whatsapp.timeout must be positive")
	}
	if cfg.WhatsApp.SendRate < 0 {
		return fmt.Errorf("whatsapp.send_rate must not be negative")
	}

	return nil
}
