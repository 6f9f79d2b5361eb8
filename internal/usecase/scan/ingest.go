package scan

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"veriscan/internal/bootstrap/logging"
	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
)

// SidecarName is the optional per-directory ingest config file.
const SidecarName = ".veriscan.toml"

// IngestConfig controls directory ingestion. A sidecar file in the watched
// root overrides the caller-supplied defaults field by field.
type IngestConfig struct {
	Owner      string   `toml:"owner"`
	Source     string   `toml:"source"`     // camera or gallery, default gallery
	Extensions []string `toml:"extensions"` // extra allowed extensions
}

// LoadSidecar reads <root>/.veriscan.toml when present.
func LoadSidecar(root string) (IngestConfig, bool, error) {
	raw, err := os.ReadFile(filepath.Join(root, SidecarName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return IngestConfig{}, false, nil
		}
		return IngestConfig{}, false, errs.Wrap(err, "read ingest sidecar")
	}

	var cfg IngestConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return IngestConfig{}, false, errs.Wrap(err, "decode ingest sidecar")
	}
	return cfg, true, nil
}

func mergeIngestConfig(defaults, sidecar IngestConfig) IngestConfig {
	merged := defaults
	if strings.TrimSpace(sidecar.Owner) != "" {
		merged.Owner = sidecar.Owner
	}
	if strings.TrimSpace(sidecar.Source) != "" {
		merged.Source = sidecar.Source
	}
	if len(sidecar.Extensions) > 0 {
		merged.Extensions = sidecar.Extensions
	}
	return merged
}

// IngestDirectory watches root and submits every image file that appears
// there through the pipeline. Per-file failures are logged and skipped; the
// watch keeps running until ctx is canceled.
func (s *Service) IngestDirectory(ctx context.Context, root string, defaults IngestConfig) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	sidecar, found, err := LoadSidecar(root)
	if err != nil {
		return err
	}
	cfg := defaults
	if found {
		cfg = mergeIngestConfig(defaults, sidecar)
	}

	if strings.TrimSpace(cfg.Owner) == "" {
		return domainscan.ErrOwnerRequired
	}
	source := domainscan.Source(cfg.Source)
	if cfg.Source == "" {
		source = domainscan.SourceGallery
	}
	if !source.Valid() {
		return errs.Wrapf(domainscan.ErrInvalidSource, "ingest source %q", cfg.Source)
	}

	allowed := map[string]struct{}{}
	for ext := range defaultImageExts {
		allowed[ext] = struct{}{}
	}
	for _, ext := range cfg.Extensions {
		allowed[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")] = struct{}{}
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.scan.ingest"),
		slog.String("root", root),
		slog.String("owner_id", cfg.Owner),
	)

	paths, watchErrs, err := StartWatcher(logCtx, WatchConfig{
		Root:        root,
		AllowedExts: allowed,
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	logging.Info(logCtx, "directory ingest started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watchErrs:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "watcher error", slog.Any("err", errs.Loggable(err)))
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			s.ingestFile(logCtx, path, cfg.Owner, source)
		}
	}
}

func (s *Service) ingestFile(ctx context.Context, path, ownerID string, source domainscan.Source) {
	image, err := os.ReadFile(path)
	if err != nil {
		logging.Warn(ctx, "skipping unreadable file",
			slog.String("path", path),
			slog.Any("err", errs.Loggable(err)),
		)
		return
	}

	result, err := s.Submit(ctx, SubmitInput{OwnerID: ownerID, Image: image, Source: source})
	if err != nil {
		logging.Error(ctx, "ingest submit failed",
			slog.String("path", path),
			slog.Any("err", errs.Loggable(err)),
		)
		return
	}

	logging.Info(ctx, "file ingested",
		slog.String("path", path),
		slog.String("record_id", result.Record.ID),
	)
}
