package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rate-cache-service/internal/service"
)

const envPrefix = "RATECACHE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	QuoteAPI QuoteAPIConfig `mapstructure:"quote_api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type QuoteAPIConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// RefreshInterval is how often cached pairs are refetched in the
	// background. Zero disables the refresher.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type CacheConfig struct {
	ValidityPeriod     time.Duration `mapstructure:"validity_period"`
	PersistenceEnabled bool          `mapstructure:"persistence_enabled"`
	StoreKeyName       string        `mapstructure:"store_key_name"`
}

type StoreConfig struct {
	Driver        string `mapstructure:"driver"` // memory, file or redis
	FilePath      string `mapstructure:"file_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // logfmt or json
}

// LoadConfig reads configuration from defaults, an optional YAML file and
// RATECACHE_* environment variables, in increasing order of precedence. A
// .env file in the working directory is loaded into the environment first.
// With path empty, ./config/ratecache.yaml is used if it exists.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ratecache")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := service.DefaultSettings()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("quote_api.endpoint", defaults.RemoteEndpoint)
	v.SetDefault("quote_api.timeout", defaults.FetchTimeout)
	v.SetDefault("quote_api.refresh_interval", time.Hour)

	v.SetDefault("cache.validity_period", defaults.ValidityPeriod)
	v.SetDefault("cache.persistence_enabled", defaults.PersistenceEnabled)
	v.SetDefault("cache.store_key_name", defaults.StoreKeyName)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.file_path", "./data")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "ratecache:")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "logfmt")
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Cache.ValidityPeriod < 0 {
		return fmt.Errorf("negative cache validity period %s", c.Cache.ValidityPeriod)
	}
	return nil
}

// Settings returns the resolver settings described by the config.
func (c *Config) Settings() service.Settings {
	return service.Settings{
		ValidityPeriod:     c.Cache.ValidityPeriod,
		PersistenceEnabled: c.Cache.PersistenceEnabled,
		StoreKeyName:       c.Cache.StoreKeyName,
		RemoteEndpoint:     c.QuoteAPI.Endpoint,
		FetchTimeout:       c.QuoteAPI.Timeout,
	}
}
