package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Run modes.
const (
	ModeLive   = "LIVE"
	ModeReplay = "REPLAY"
)

type Config struct {
	Mode string `env:"MODE" envDefault:"LIVE"`

	ReplayFilePath  string  `env:"REPLAY_FILE_PATH" envDefault:"data/session_capture.jsonl"`
	ReplaySpeed     float64 `env:"REPLAY_SPEED" envDefault:"1.0"`
	CaptureFilePath string  `env:"CAPTURE_FILE_PATH"`

	BaseURL string `env:"F1_BASE_URL" envDefault:"https://livetiming.formula1.com/signalr"`

	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"lt-relay"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"ltrelay/events"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	StateFile string `env:"STATE_FILE" envDefault:"final_structured_state.json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	Mode        string
	ReplayFile  string
	ReplaySpeed float64
	HTTPAddr    string
	LogLevel    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.Mode != "" {
		cfg.Mode = overrides.Mode
	}
	if overrides.ReplayFile != "" {
		cfg.ReplayFilePath = overrides.ReplayFile
	}
	if overrides.ReplaySpeed > 0 {
		cfg.ReplaySpeed = overrides.ReplaySpeed
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	cfg.Mode = strings.ToUpper(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != ModeLive && cfg.Mode != ModeReplay {
		return nil, fmt.Errorf("invalid MODE %q: must be LIVE or REPLAY", cfg.Mode)
	}
	if cfg.ReplaySpeed <= 0 {
		return nil, fmt.Errorf("invalid REPLAY_SPEED %v: must be > 0", cfg.ReplaySpeed)
	}

	return cfg, nil
}
