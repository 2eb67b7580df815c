package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "IRDINV"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Import   ImportConfig   `mapstructure:"import"`
}

type ServerConfig struct {
	Address  string `mapstructure:"address"`
	HTTPPort string `mapstructure:"http_port"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | mysql | sqlite
	DSN    string `mapstructure:"dsn"`
	// Transactions: auto | always | never
	Transactions      string `mapstructure:"transactions"`
	DropLegacyIndexes bool   `mapstructure:"drop_legacy_indexes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
	File   string `mapstructure:"file"`
}

type ImportConfig struct {
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

// MaxUploadBytes: лимит multipart-тела для /irds/bulk.
func (c ImportConfig) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:irdinv.db?_busy_timeout=5000")
	v.SetDefault("database.transactions", "auto")
	v.SetDefault("database.drop_legacy_indexes", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("import.max_upload_mb", 10)
}

// Load reads path (optional; yaml/json/toml by extension) and then
// IRDINV_* environment variables, e.g. IRDINV_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("irdinv")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/irdinv")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch strings.ToLower(c.Database.Transactions) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("database.transactions: %q (auto|always|never)", c.Database.Transactions)
	}
	if c.Import.MaxUploadMB <= 0 {
		return errors.New("import.max_upload_mb must be positive")
	}
	return nil
}
