// Package config loads the engine's runtime configuration the way
// marmos91/dittofs's pkg/config does: layered viper sources (flags,
// environment, file, defaults) unmarshaled into a typed struct and
// checked with go-playground/validator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for all overrides, e.g.
// COAP_TRANSMISSION_ACK_TIMEOUT.
const EnvPrefix = "COAP"

// Config is the engine's full runtime configuration.
type Config struct {
	Listen       ListenConfig       `mapstructure:"listen"`
	Transmission TransmissionConfig `mapstructure:"transmission"`
	Tables       TablesConfig       `mapstructure:"tables"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ListenConfig controls which endpoint the engine binds to.
type ListenConfig struct {
	Address  string `mapstructure:"address" validate:"required"`
	Reliable bool   `mapstructure:"reliable"`
}

// TransmissionConfig mirrors RFC 7252 §4.8.1's transmission parameters.
type TransmissionConfig struct {
	AckTimeout         time.Duration `mapstructure:"ack_timeout" validate:"required,gt=0"`
	AckRandomFactor    float64       `mapstructure:"ack_random_factor" validate:"required,gte=1"`
	MaxRetransmissions int           `mapstructure:"max_retransmissions" validate:"gte=0,lte=16"`
}

// TablesConfig sizes the engine's fixed-capacity tables.
type TablesConfig struct {
	TransactionCapacity int `mapstructure:"transaction_capacity" validate:"required,gt=0"`
	ReliableCapacity    int `mapstructure:"reliable_capacity" validate:"required,gt=0"`
	ConnectionCapacity  int `mapstructure:"connection_capacity" validate:"required,gt=0"`
	SendBufferSize      int `mapstructure:"send_buffer_size" validate:"required,gte=64"`
}

// MetricsConfig controls the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"omitempty,required"`
}

// LoggingConfig controls verbosity of the shared telemetry logger.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Default returns the engine's baked-in configuration, used when no
// file or environment override is present.
func Default() Config {
	return Config{
		Listen: ListenConfig{Address: ":5683"},
		Transmission: TransmissionConfig{
			AckTimeout:         2 * time.Second,
			AckRandomFactor:    1.5,
			MaxRetransmissions: 4,
		},
		Tables: TablesConfig{
			TransactionCapacity: 16,
			ReliableCapacity:    16,
			ConnectionCapacity:  8,
			SendBufferSize:      1152,
		},
		Metrics: MetricsConfig{Enabled: false, Address: ":9090"},
	}
}

// Load builds a Config from, in ascending precedence: the compiled-in
// defaults, an optional config file at configPath, and COAP_-prefixed
// environment variables. Flags are layered on top by the caller via
// BindFlags before Load runs, following cobra/viper convention.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	def := Default()
	setDefaults(v, def)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("listen.address", def.Listen.Address)
	v.SetDefault("listen.reliable", def.Listen.Reliable)
	v.SetDefault("transmission.ack_timeout", def.Transmission.AckTimeout)
	v.SetDefault("transmission.ack_random_factor", def.Transmission.AckRandomFactor)
	v.SetDefault("transmission.max_retransmissions", def.Transmission.MaxRetransmissions)
	v.SetDefault("tables.transaction_capacity", def.Tables.TransactionCapacity)
	v.SetDefault("tables.reliable_capacity", def.Tables.ReliableCapacity)
	v.SetDefault("tables.connection_capacity", def.Tables.ConnectionCapacity)
	v.SetDefault("tables.send_buffer_size", def.Tables.SendBufferSize)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.address", def.Metrics.Address)
	v.SetDefault("logging.debug", def.Logging.Debug)
}
