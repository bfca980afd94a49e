package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StorageDriver selects the rule/assignment repository.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StoragePostgres StorageDriver = "postgres"
)

type Configuration struct {
	Server   ServerConfig   `validate:"required"`
	Storage  StorageConfig  `validate:"required"`
	Postgres PostgresConfig
	Cache    CacheConfig
	Logging  LoggingConfig `validate:"required"`
	Engine   EngineConfig
	Seed     SeedConfig
}

type ServerConfig struct {
	Address      string        `mapstructure:"address" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type StorageConfig struct {
	Driver StorageDriver `mapstructure:"driver" validate:"required,oneof=memory postgres"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	// TTL bounds how long resolved candidate lists are reused. 0 disables expiry.
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type LoggingConfig struct {
	Level           string `mapstructure:"level" validate:"required"`
	ErrorSampleRate int    `mapstructure:"error_sample_rate" validate:"gte=1"`
}

type EngineConfig struct {
	BatchConcurrency int `mapstructure:"batch_concurrency" validate:"gte=1"`
}

type SeedConfig struct {
	// File is a YAML fixture loaded into the memory store at startup.
	File string `mapstructure:"file"`
}

// NewConfig reads config.yaml (if present) and RULES_* environment variables.
func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rules")

	setDefaults(v)

	v.SetEnvPrefix("RULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// DATABASE_URL and PORT are still honoured
	_ = v.BindEnv("postgres.url", "RULES_POSTGRES_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", "RULES_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.address")
	_ = v.BindEnv("seed.file")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server.Address == "" {
		config.Server.Address = ":" + v.GetString("server.port")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("storage.driver", string(StorageMemory))
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.error_sample_rate", 1)
	v.SetDefault("engine.batch_concurrency", 8)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Driver == StoragePostgres && c.Postgres.URL == "" {
		return errors.New("postgres.url is required when storage.driver is postgres")
	}
	return nil
}

// GetDefaultConfig returns a configuration for local development and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{Driver: StorageMemory},
		Cache:   CacheConfig{TTL: 30 * time.Second},
		Logging: LoggingConfig{Level: "debug", ErrorSampleRate: 1},
		Engine:  EngineConfig{BatchConcurrency: 8},
	}
}
