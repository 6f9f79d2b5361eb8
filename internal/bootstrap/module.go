package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"veriscan/internal/bootstrap/config"
	"veriscan/internal/bootstrap/database"
	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/infrastructure/analysis"
	businfra "veriscan/internal/infrastructure/bus"
	cacheinfra "veriscan/internal/infrastructure/cache"
	"veriscan/internal/infrastructure/objectstore"
	sqliterepo "veriscan/internal/infrastructure/persistence/sqlite/repository"
	"veriscan/internal/infrastructure/vision"
	"veriscan/internal/ports"
	scanusecase "veriscan/internal/usecase/scan"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideEventBus),
	fx.Provide(provideObjectStore),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewScanRepository,
			fx.As(new(ports.ScanRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideExtractor),
	fx.Provide(provideAnalyzer),
	fx.Provide(scanusecase.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideEventBus(lc fx.Lifecycle, cfg config.Config) (ports.EventBus, error) {
	switch cfg.Bus.Backend {
	case "memory":
		return businfra.NewMemoryBus(), nil
	case "nats":
		natsBus, err := businfra.NewNATSBus(cfg.Bus.URL, cfg.Bus.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				natsBus.Close()
				return nil
			},
		})
		return natsBus, nil
	default:
		return nil, fmt.Errorf("unsupported bus backend %q", cfg.Bus.Backend)
	}
}

func provideObjectStore(ctx context.Context, cfg config.Config) (ports.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "fs":
		return objectstore.NewFSStore(cfg.Storage.Root, cfg.Storage.BaseURL, []byte(cfg.Storage.Secret))
	case "gcs":
		return objectstore.NewGCSStore(ctx, cfg.Storage.Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

func provideExtractor(cfg config.Config, cache ports.Cache) ports.TextExtractor {
	return vision.NewClient(vision.Config{
		Endpoint: cfg.Vision.Endpoint,
		APIKey:   cfg.Vision.APIKey,
		Timeout:  cfg.Vision.Timeout,
	}, cache)
}

func provideAnalyzer(cfg config.Config) (ports.Analyzer, error) {
	switch cfg.Analyzer.Backend {
	case "openai":
		return analysis.NewOpenAIAnalyzer(analysis.OpenAIConfig{
			BaseURL:     cfg.Analyzer.BaseURL,
			APIKey:      cfg.Analyzer.APIKey,
			Model:       cfg.Analyzer.Model,
			Temperature: cfg.Analyzer.Temperature,
		}), nil
	case "static":
		return analysis.NewStaticAnalyzer(), nil
	default:
		return nil, fmt.Errorf("unsupported analyzer backend %q", cfg.Analyzer.Backend)
	}
}
