package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const DefaultPort = 3000

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	SlowClient   string        `mapstructure:"slow_client"`
	AcceptLimit  int           `mapstructure:"accept_limit"`
	AcceptWindow time.Duration `mapstructure:"accept_window"`
	Secret       string        `mapstructure:"secret"`
	LogLevel     string        `mapstructure:"log_level"`
	LogPretty    bool          `mapstructure:"log_pretty"`
	ICEServers   []ICEServer   `mapstructure:"ice_servers"`
}

// Load reads config/config.<env>.yaml on top of the defaults. A missing file
// is not an error. PORT overrides port.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetDefault("mode", "release")
	v.SetDefault("port", DefaultPort)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("slow_client", "drop")
	v.SetDefault("accept_limit", 0)
	v.SetDefault("accept_window", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	if err := v.BindEnv("port", "PORT"); err != nil {
		return nil, fmt.Errorf("bind PORT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Mode {
	case "release", "debug":
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	switch c.SlowClient {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid slow_client %q", c.SlowClient)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.AcceptLimit < 0 {
		return fmt.Errorf("accept_limit must not be negative, got %d", c.AcceptLimit)
	}
	if c.AcceptLimit > 0 && c.AcceptWindow <= 0 {
		return fmt.Errorf("accept_window must be positive when accept_limit is set")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
