package config

import (
	"strconv"
	"time"

	"github.com/mattjoyce/menubot/internal/menu"
)

// Config represents the complete menubot configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Clinic   ClinicConfig   `yaml:"clinic"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
	LogFile   string `yaml:"log_file,omitempty" env:"LOG_FILE"`

	// Rotation of LogFile; zero keeps the rotator's defaults.
	LogMaxSizeMB  int `yaml:"log_max_size_mb,omitempty" env:"LOG_MAX_SIZE_MB"`
	LogMaxAgeDays int `yaml:"log_max_age_days,omitempty" env:"LOG_MAX_AGE_DAYS"`
}

// WebhookConfig defines the inbound webhook listener.
type WebhookConfig struct {
	// Listen is a full listen address; when empty ":<Port>" is used.
	Listen string `yaml:"listen,omitempty"`
	Port   int    `yaml:"port" env:"PORT"`
	Path   string `yaml:"path" env:"WEBHOOK_PATH"`

	// VerifyToken answers the provider's subscription handshake.
	VerifyToken string `yaml:"verify_token" env:"WHATSAPP_VERIFY_TOKEN"`

	// AppSecret signs inbound deliveries. Empty disables signature verification.
	AppSecret string `yaml:"app_secret,omitempty" env:"APP_SECRET"`

	// MaxBodySize accepts sizes like "1MB" or "2048576".
	MaxBodySize string `yaml:"max_body_size,omitempty" env:"WEBHOOK_MAX_BODY_SIZE"`
}

// WhatsAppConfig defines the Cloud API client used for replies.
type WhatsAppConfig struct {
	AccessToken   string        `yaml:"access_token" env:"WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string        `yaml:"phone_number_id" env:"WHATSAPP_PHONE_NUMBER_ID"`
	APIVersion    string        `yaml:"api_version" env:"WHATSAPP_API_VERSION"`
	BaseURL       string        `yaml:"base_url" env:"WHATSAPP_BASE_URL"`
	TestMode      bool          `yaml:"test_mode" env:"TEST_MODE"`
	Timeout       time.Duration `yaml:"timeout" env:"WHATSAPP_TIMEOUT"`
	SendRate      float64       `yaml:"send_rate,omitempty" env:"WHATSAPP_SEND_RATE"`
}

// ClinicConfig holds the business details shown in menu replies.
type ClinicConfig struct {
	Name    string `yaml:"name" env:"CLINIC_NAME"`
	Address string `yaml:"address" env:"CLINIC_ADDRESS"`
	Hours   string `yaml:"hours" env:"CLINIC_HOURS"`
}

// ListenAddr returns the address the webhook server binds to.
func (w WebhookConfig) ListenAddr() string {
	if w.Listen != "" {
		return w.Listen
	}
	return ":" + strconv.Itoa(w.Port)
}

// Defaults returns a Config with the values used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "menubot",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Webhook: WebhookConfig{
			Port:        3000,
			Path:        "/webhook",
			MaxBodySize: "1MB",
		},
		WhatsApp: WhatsAppConfig{
			APIVersion: "v22.0",
			BaseURL:    "https://graph.facebook.com",
			Timeout:    15 * time.Second,
		},
		Clinic: ClinicConfig{
			Name:    menu.DefaultClinicName,
			Address: menu.DefaultAddress,
			Hours:   menu.DefaultHours,
		},
	}
}
