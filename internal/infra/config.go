package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTransportPort is the fixed port channel streams are served on
	// when the config does not override it.
	DefaultTransportPort = 8765

	// DefaultReconnectDelaySec is the fixed delay between reconnect attempts.
	// Deliberately a flat interval rather than exponential backoff: the
	// channels retry indefinitely and a dashboard wants fast, predictable
	// recovery.
	DefaultReconnectDelaySec = 5
)

// Config holds the complete application configuration.
// Sensitive and host-specific values can be overridden via environment
// variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Transport struct {
		Host              string `yaml:"host"`
		Port              int    `yaml:"port"`
		ReconnectDelaySec int    `yaml:"reconnect_delay_sec"`
	} `yaml:"transport"`

	SystemPoller struct {
		URL             string `yaml:"url"` // empty disables the poller
		PollIntervalSec int    `yaml:"poll_interval_sec"`
	} `yaml:"system_poller"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	UI struct {
		LogWindow int    `yaml:"log_window"` // retained log lines per log widget
		Theme     string `yaml:"theme"`
	} `yaml:"ui"`

	Icons struct {
		BaseURL string `yaml:"base_url"` // empty disables icon sync
	} `yaml:"icons"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Host == "" {
		c.Transport.Host = "127.0.0.1"
	}
	if c.Transport.Port == 0 {
		c.Transport.Port = DefaultTransportPort
	}
	if c.Transport.ReconnectDelaySec == 0 {
		c.Transport.ReconnectDelaySec = DefaultReconnectDelaySec
	}
	if c.SystemPoller.PollIntervalSec == 0 {
		c.SystemPoller.PollIntervalSec = 10
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.UI.LogWindow == 0 {
		c.UI.LogWindow = 50
	}
}

// ChannelURL builds the websocket URL for one channel stream.
func (c *Config) ChannelURL(channel string) string {
	return fmt.Sprintf("ws://%s:%d/%s", c.Transport.Host, c.Transport.Port, channel)
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("invalid transport port: %d", c.Transport.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Transport.ReconnectDelaySec <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.UI.LogWindow <= 0 {
		return fmt.Errorf("log window must be positive")
	}
	if c.SystemPoller.URL != "" && c.SystemPoller.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if host := os.Getenv("DASH_TRANSPORT_HOST"); host != "" {
		cfg.Transport.Host = host
	}
	if port := os.Getenv("DASH_TRANSPORT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Transport.Port = p
		}
	}
	if port := os.Getenv("DASH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("DASH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
