package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Auth     Auth     `mapstructure:"auth"`
	Trading  Trading  `mapstructure:"trading"`
	Pricing  Pricing  `mapstructure:"pricing"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Auth holds the JWT configuration.
type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Trading holds the default rates applied when a request does not carry them.
type Trading struct {
	DefaultCommissionRate float64 `mapstructure:"default_commission_rate"`
	DefaultTaxRate        float64 `mapstructure:"default_tax_rate"`
}

// Pricing holds the configuration for the background price refresher.
type Pricing struct {
	Enabled         bool   `mapstructure:"enabled"`
	BaseURL         string `mapstructure:"base_url"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and env vars apply.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "folio.db")
	viper.SetDefault("auth.jwt_secret", "folio-secret-key")
	viper.SetDefault("trading.default_commission_rate", 0.0004) // 4 bps
	viper.SetDefault("trading.default_tax_rate", 0.0)
	viper.SetDefault("pricing.enabled", false)
	viper.SetDefault("pricing.interval_seconds", 300)

	if err = viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
