package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type PenaltyBoxConfig struct {
	MinWait    string  `mapstructure:"min_wait"`
	MaxWait    string  `mapstructure:"max_wait"`
	Multiplier float64 `mapstructure:"multiplier"`
}

type BackendConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	PenaltyBox PenaltyBoxConfig `mapstructure:"penalty_box"`
	Backends   []BackendConfig  `mapstructure:"backends"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BackendAddrs returns the configured backend addresses in order. The order
// matters: it fixes each node's pool id.
func (c *Config) BackendAddrs() []string {
	addrs := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		addrs = append(addrs, b.Addr)
	}
	return addrs
}

func Load() (*Config, error) {
	return LoadFrom(".", "./config")
}

// LoadFrom reads config.yaml from the given search paths, applying defaults
// and environment overrides, and validates the result.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("penalty_box.min_wait", "10s")
	v.SetDefault("penalty_box.max_wait", "300s")
	v.SetDefault("penalty_box.multiplier", 1.5)
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.PenaltyBox,
			validation.Required,
			validation.By(validatePenaltyBox),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
		),
	)
}

func validatePenaltyBox(value interface{}) error {
	pb, ok := value.(PenaltyBoxConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a PenaltyBoxConfig")
	}

	if err := validation.ValidateStruct(&pb,
		validation.Field(&pb.MinWait, validation.Required, validation.By(validateDuration)),
		validation.Field(&pb.MaxWait, validation.Required, validation.By(validateDuration)),
	); err != nil {
		return err
	}

	minWait, _ := time.ParseDuration(pb.MinWait)
	maxWait, _ := time.ParseDuration(pb.MaxWait)
	if minWait > maxWait {
		return validation.NewError("validation_invalid_waits", "min_wait must not exceed max_wait")
	}

	if pb.Multiplier <= 1 {
		return validation.NewError("validation_invalid_multiplier", "multiplier must be greater than 1")
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if backend.Addr == "" {
		return validation.NewError("validation_empty_addr", "backend address cannot be empty")
	}

	return validateHostPort(backend.Addr)
}
