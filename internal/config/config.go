// Package config загружает настройки сервиса из файла, переменных окружения и значений по умолчанию.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScraperConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// BaseURLs: адреса зеркал по коду источника.
	BaseURLs map[string]string `mapstructure:"base_urls"`
}

type IngestionConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	Timezone   string        `mapstructure:"timezone"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type PredictorConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ForecastConfig struct {
	Async     bool `mapstructure:"async"`
	Workers   int  `mapstructure:"workers"`
	QueueSize int  `mapstructure:"queue_size"`
}

type OverpassConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load читает конфигурацию. Пустой path: поиск mkrew.yaml в ./configs и текущем каталоге,
// отсутствие файла не является ошибкой.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mkrew")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// viper приводит ключи карт к нижнему регистру, коды источников: в верхнем
	urls := make(map[string]string, len(cfg.Scraper.BaseURLs))
	for code, u := range cfg.Scraper.BaseURLs {
		urls[strings.ToUpper(code)] = u
	}
	cfg.Scraper.BaseURLs = urls

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scraper.timeout", 10*time.Second)

	v.SetDefault("ingestion.concurrency", 1)

	// ежедневно в 10:00 по Варшаве
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron", "0 10 * * *")
	v.SetDefault("scheduler.timezone", "Europe/Warsaw")
	v.SetDefault("scheduler.job_timeout", 30*time.Minute)

	v.SetDefault("predictor.url", "http://localhost:5000")
	v.SetDefault("predictor.timeout", 30*time.Second)

	v.SetDefault("forecast.async", false)
	v.SetDefault("forecast.workers", 2)
	v.SetDefault("forecast.queue_size", 64)

	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout", 25*time.Second)
}

func bindEnv(v *viper.Viper) {
	// имена переменных, принятые в развёртывании
	_ = v.BindEnv("database.url", "POSTGRES_URL")
	_ = v.BindEnv("predictor.url", "ML_SERVICE_URL")
	_ = v.BindEnv("predictor.api_key", "ML_SERVICE_API_KEY")
	_ = v.BindEnv("overpass.url", "OVERPASS_URL")

	v.SetEnvPrefix("MKREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database url is required (POSTGRES_URL)")
	}
	if c.Predictor.URL == "" {
		return errors.New("predictor url is required (ML_SERVICE_URL)")
	}
	if c.Ingestion.Concurrency < 1 {
		return fmt.Errorf("ingestion.concurrency must be >= 1, got %d", c.Ingestion.Concurrency)
	}
	if c.Forecast.Async && c.Forecast.Workers < 1 {
		return fmt.Errorf("forecast.workers must be >= 1, got %d", c.Forecast.Workers)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone: %w", err)
	}
	return nil
}
