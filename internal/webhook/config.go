package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/menubot/internal/config"
)

// FromGlobalConfig converts config.WebhookConfig to webhook.Config.
// Parses the max body size.
func FromGlobalConfig(wc config.WebhookConfig) (Config, error) {
	maxBodySize, err := parseMaxBodySize(wc.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("webhook: invalid max_body_size %q: %w", wc.MaxBodySize, err)
	}

	return Config{
		Listen:      wc.ListenAddr(),
		Path:        wc.Path,
		VerifyToken: wc.VerifyToken,
		AppSecret:   wc.AppSecret,
		MaxBodySize: maxBodySize,
	}, nil
}

// parseMaxBodySize parses size strings like "1MB", "2048576", "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value { // Check for overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
