package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSidecar(t *testing.T) {
	root := t.TempDir()
	sidecar := `
owner = "owner-a"
source = "camera"
extensions = ["webp"]
`
	if err := os.WriteFile(filepath.Join(root, SidecarName), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	cfg, found, err := LoadSidecar(root)
	if err != nil {
		t.Fatalf("LoadSidecar() error = %v", err)
	}
	if !found {
		t.Fatalf("LoadSidecar() found = false")
	}
	if cfg.Owner != "owner-a" || cfg.Source != "camera" {
		t.Fatalf("LoadSidecar() = %+v", cfg)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != "webp" {
		t.Fatalf("LoadSidecar() extensions = %v", cfg.Extensions)
	}
}

func TestLoadSidecarMissing(t *testing.T) {
	_, found, err := LoadSidecar(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSidecar() error = %v", err)
	}
	if found {
		t.Fatalf("LoadSidecar() found = true for empty dir")
	}
}

func TestLoadSidecarMalformed(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, SidecarName), []byte("owner = [broken"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	if _, _, err := LoadSidecar(root); err == nil {
		t.Fatalf("LoadSidecar() expected error for malformed toml")
	}
}

func TestMergeIngestConfig(t *testing.T) {
	defaults := IngestConfig{Owner: "owner-a", Source: "gallery", Extensions: []string{"jpg"}}

	merged := mergeIngestConfig(defaults, IngestConfig{Source: "camera"})
	if merged.Owner != "owner-a" {
		t.Fatalf("merged owner = %q", merged.Owner)
	}
	if merged.Source != "camera" {
		t.Fatalf("merged source = %q", merged.Source)
	}
	if len(merged.Extensions) != 1 || merged.Extensions[0] != "jpg" {
		t.Fatalf("merged extensions = %v", merged.Extensions)
	}

	full := mergeIngestConfig(defaults, IngestConfig{Owner: "owner-b", Extensions: []string{"png", "webp"}})
	if full.Owner != "owner-b" || len(full.Extensions) != 2 {
		t.Fatalf("merged = %+v", full)
	}
}

func TestExtAllowed(t *testing.T) {
	allowed := map[string]struct{}{"jpg": {}, "png": {}}

	if !extAllowed("/photos/a.JPG", allowed) {
		t.Fatalf("extAllowed(.JPG) = false")
	}
	if !extAllowed("/photos/b.png", allowed) {
		t.Fatalf("extAllowed(.png) = false")
	}
	if extAllowed("/photos/c.gif", allowed) {
		t.Fatalf("extAllowed(.gif) = true")
	}
	if extAllowed("/photos/noext", allowed) {
		t.Fatalf("extAllowed(no extension) = true")
	}
}
