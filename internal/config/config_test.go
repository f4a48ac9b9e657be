package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"eagleeye/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080 got %q", cfg.Server.Addr)
	}
	if cfg.OCR.EarlyExitConfidence != 0.85 {
		t.Fatalf("expected early exit 0.85 got %v", cfg.OCR.EarlyExitConfidence)
	}
	if cfg.Pipeline.CropPadding != 10 {
		t.Fatalf("expected crop padding 10 got %d", cfg.Pipeline.CropPadding)
	}
	if cfg.Vision.ExpandMargin != 20 {
		t.Fatalf("expected expand margin 20 got %d", cfg.Vision.ExpandMargin)
	}
	if len(cfg.OCR.Variants) != 3 || cfg.OCR.Variants[0] != "contrast" {
		t.Fatalf("unexpected OCR variants %v", cfg.OCR.Variants)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  addr: \":9090\"\nocr:\n  early_exit_confidence: 0.9\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected addr :9090 got %q", cfg.Server.Addr)
	}
	if cfg.OCR.EarlyExitConfidence != 0.9 {
		t.Fatalf("expected early exit 0.9 got %v", cfg.OCR.EarlyExitConfidence)
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.MinTextLength != 3 {
		t.Fatalf("expected min text length 3 got %d", cfg.Pipeline.MinTextLength)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=n sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}
