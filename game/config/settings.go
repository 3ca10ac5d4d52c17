package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEMORY_SERVER_PORT
const EnvPrefix = "MEMORY"

// Settings holds the server configuration
type Settings struct {
	Server      ServerSettings      `mapstructure:"server" validate:"required"`
	Leaderboard LeaderboardSettings `mapstructure:"leaderboard" validate:"required"`
	Assets      AssetSettings       `mapstructure:"assets" validate:"required"`
	RateLimit   RateLimitSettings   `mapstructure:"rate_limit" validate:"required"`
	Sessions    SessionSettings     `mapstructure:"sessions" validate:"required"`
}

// ServerSettings configures the HTTP listener and logging
type ServerSettings struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ConfigDir string `mapstructure:"config_dir" validate:"required"`

	// DefaultConfig names the preset used when a session asks for none.
	// Empty keeps the manager's own pick.
	DefaultConfig string `mapstructure:"default_config"`
}

// LeaderboardSettings selects the leaderboard blob store
type LeaderboardSettings struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=file memory postgres"`
	Dir         string `mapstructure:"dir" validate:"required_if=Backend file"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

// AssetSettings configures the card face provider
type AssetSettings struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	Concurrency    int    `mapstructure:"concurrency" validate:"gt=0,lte=64"`
	Offline        bool   `mapstructure:"offline"`
}

// RateLimitSettings limits flips per session
type RateLimitSettings struct {
	FlipsPerSecond float64 `mapstructure:"flips_per_second" validate:"gt=0"`
	Burst          int     `mapstructure:"burst" validate:"gt=0"`
}

// SessionSettings controls idle session expiry
type SessionSettings struct {
	MaxIdleHours int `mapstructure:"max_idle_hours" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.config_dir", "configs")
	v.SetDefault("server.default_config", "")

	v.SetDefault("leaderboard.backend", "file")
	v.SetDefault("leaderboard.dir", "data")
	v.SetDefault("leaderboard.database_url", "")

	v.SetDefault("assets.base_url", "https://pokeapi.co/api/v2/pokemon")
	v.SetDefault("assets.timeout_seconds", 5)
	v.SetDefault("assets.concurrency", 8)
	v.SetDefault("assets.offline", false)

	v.SetDefault("rate_limit.flips_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("sessions.max_idle_hours", 24)
}

// LoadSettings reads defaults, then the optional settings file, then
// MEMORY_* environment variables, and validates the result.
func LoadSettings(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks the settings against their struct tags
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid settings: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the host:port the server listens on
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
