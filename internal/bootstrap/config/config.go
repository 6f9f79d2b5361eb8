package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Bus      BusConfig      `mapstructure:"bus"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Backend string        `mapstructure:"backend"` // fs or gcs
	Root    string        `mapstructure:"root"`    // fs: objects directory
	BaseURL string        `mapstructure:"base_url"`
	Secret  string        `mapstructure:"secret"` // fs: signed url secret
	Bucket  string        `mapstructure:"bucket"` // gcs
	SignTTL time.Duration `mapstructure:"sign_ttl"`
}

type VisionConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AnalyzerConfig struct {
	Backend     string  `mapstructure:"backend"` // openai or static
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

type BusConfig struct {
	Backend       string `mapstructure:"backend"` // memory or nats
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type DeliveryConfig struct {
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("bus_backend", cfg.Bus.Backend),
		slog.String("analyzer_backend", cfg.Analyzer.Backend),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	switch cfg.Storage.Backend {
	case "fs":
		if cfg.Storage.Secret == "" {
			return errors.New("storage.secret is required for the fs backend")
		}
	case "gcs":
		if cfg.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	switch cfg.Bus.Backend {
	case "memory":
	case "nats":
		if cfg.Bus.URL == "" {
			return errors.New("bus.url is required for the nats backend")
		}
	default:
		return fmt.Errorf("unsupported bus backend %q", cfg.Bus.Backend)
	}

	switch cfg.Analyzer.Backend {
	case "openai", "static":
	default:
		return fmt.Errorf("unsupported analyzer backend %q", cfg.Analyzer.Backend)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "veriscan")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".veriscan/state/veriscan.sqlite")
	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.root", ".veriscan/objects")
	v.SetDefault("storage.base_url", "http://localhost:8080")
	v.SetDefault("storage.secret", "veriscan-local-secret")
	v.SetDefault("storage.sign_ttl", 15*time.Minute)
	v.SetDefault("vision.endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("vision.timeout", 30*time.Second)
	v.SetDefault("analyzer.backend", "static")
	v.SetDefault("analyzer.temperature", 0.0)
	v.SetDefault("bus.backend", "memory")
	v.SetDefault("bus.subject_prefix", "veriscan")
	v.SetDefault("delivery.wait_timeout", 30*time.Second)
	v.SetDefault("server.addr", ":8080")
}
