package app

import (
	"testing"
	"time"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/services"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(logger.NewNop())

	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected default cache TTL 5m, got %s", cfg.CacheTTL)
	}
	if cfg.MaxPatches != services.DefaultMaxPatches {
		t.Fatalf("expected default max patches %d, got %d", services.DefaultMaxPatches, cfg.MaxPatches)
	}
	if !cfg.AutoMigrate {
		t.Fatal("auto migration should default to on")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("MAX_PATCHES", "10")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := LoadConfig(logger.NewNop())

	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.AllowOrigins)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Fatalf("expected 90s TTL, got %s", cfg.CacheTTL)
	}
	if cfg.MaxPatches != 10 {
		t.Fatalf("expected max patches 10, got %d", cfg.MaxPatches)
	}
	if cfg.AutoMigrate {
		t.Fatal("auto migration should be off")
	}
}

func TestLoadConfigRejectsUnparsableValues(t *testing.T) {
	t.Setenv("MAX_PATCHES", "lots")
	t.Setenv("AUTO_MIGRATE", "maybe")

	cfg := LoadConfig(logger.NewNop())

	if cfg.MaxPatches != services.DefaultMaxPatches {
		t.Fatalf("unparsable int should fall back to default, got %d", cfg.MaxPatches)
	}
	if !cfg.AutoMigrate {
		t.Fatal("unparsable bool should fall back to default")
	}
}
