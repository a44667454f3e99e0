package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"thermal_envelope/internal/estimator"
	"thermal_envelope/internal/logger"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. ENVELOPE_SERVER_PORT.
const EnvPrefix = "ENVELOPE"

type Server struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigins lists browser origins allowed to call the API; empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// Estimator holds the defaults applied to every fit request.
type Estimator struct {
	GridPoints      int     `mapstructure:"grid_points"`
	MaxIterations   int     `mapstructure:"max_iterations"`
	TimeUnit        string  `mapstructure:"time_unit"`
	ConfidenceLevel float64 `mapstructure:"confidence_level"`
	CondThreshold   float64 `mapstructure:"cond_threshold"`
	Workers         int     `mapstructure:"workers"`
}

// Events controls the websocket event stream.
type Events struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	DB        DB        `mapstructure:"db"`
	Log       Log       `mapstructure:"log"`
	Auth      Auth      `mapstructure:"auth"`
	Estimator Estimator `mapstructure:"estimator"`
	Events    Events    `mapstructure:"events"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("db.path", "envelope.db")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("estimator.grid_points", estimator.DefaultGridPoints)
	v.SetDefault("estimator.max_iterations", estimator.DefaultMaxIterations)
	v.SetDefault("estimator.time_unit", string(estimator.Hour))
	v.SetDefault("estimator.confidence_level", estimator.DefaultConfidenceLevel)
	v.SetDefault("estimator.cond_threshold", estimator.DefaultCondThreshold)
	v.SetDefault("estimator.workers", 0)
	v.SetDefault("events.poll_interval", 2*time.Second)
}

// Load reads config.yml from configs/ or the working directory, or from path
// when it is not empty, then applies ENVELOPE_* environment overrides. A
// missing config file is not an error; defaults apply. Auth settings are not
// checked here since offline commands do not need them; servers call Validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validateCore(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the HTTP service cannot run with.
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key: must be set (ENVELOPE_AUTH_SIGNING_KEY)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl: must be positive, got %s", c.Auth.TokenTTL)
	}
	return c.validateCore()
}

func (c *Config) validateCore() error {
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.DB.Path == "" {
		return errors.New("db.path: must not be empty")
	}
	if c.Estimator.GridPoints < 2 {
		return fmt.Errorf("estimator.grid_points: need at least 2, got %d", c.Estimator.GridPoints)
	}
	if c.Estimator.MaxIterations < 1 {
		return fmt.Errorf("estimator.max_iterations: need at least 1, got %d", c.Estimator.MaxIterations)
	}
	if _, err := estimator.ParseTimeUnit(c.Estimator.TimeUnit); err != nil {
		return fmt.Errorf("estimator.time_unit: %w", err)
	}
	if !(c.Estimator.ConfidenceLevel > 0 && c.Estimator.ConfidenceLevel < 1) {
		return fmt.Errorf("estimator.confidence_level: must be in (0, 1), got %v", c.Estimator.ConfidenceLevel)
	}
	if !(c.Estimator.CondThreshold > 1) {
		return fmt.Errorf("estimator.cond_threshold: must be > 1, got %v", c.Estimator.CondThreshold)
	}
	if c.Estimator.Workers < 0 {
		return fmt.Errorf("estimator.workers: must not be negative, got %d", c.Estimator.Workers)
	}
	if c.Events.PollInterval <= 0 {
		return fmt.Errorf("events.poll_interval: must be positive, got %s", c.Events.PollInterval)
	}
	return nil
}

// FitOptions turns the estimator section into per-fit defaults.
func (e Estimator) FitOptions() estimator.Options {
	opts := estimator.DefaultOptions()
	opts.GridPoints = e.GridPoints
	opts.MaxIterations = e.MaxIterations
	opts.Uncertainty.ConfidenceLevel = e.ConfidenceLevel
	opts.Uncertainty.CondThreshold = e.CondThreshold
	return opts
}

// Unit returns the configured default time unit.
func (e Estimator) Unit() estimator.TimeUnit {
	u, err := estimator.ParseTimeUnit(e.TimeUnit)
	if err != nil {
		return estimator.Hour
	}
	return u
}
