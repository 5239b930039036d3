package main

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/loinc-etl/internal/config"
	"github.com/ehr/loinc-etl/internal/platform/source"
)

func TestNewLogger_Level(t *testing.T) {
	cfg := &config.Config{Env: "production", LogLevel: "debug"}
	if got := newLogger(cfg).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %s", got)
	}

	cfg.LogLevel = "nonsense"
	if got := newLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info level for an unknown level, got %s", got)
	}
}

func TestNewFetcher(t *testing.T) {
	cfg := &config.Config{LOINCBaseURL: "https://loinc.org"}
	if _, ok := newFetcher(cfg, zerolog.Nop()).(*source.Client); !ok {
		t.Error("expected the loinc.org client without an archive dir")
	}

	cfg.LOINCArchiveDir = t.TempDir()
	if _, ok := newFetcher(cfg, zerolog.Nop()).(*source.DirFetcher); !ok {
		t.Error("expected a directory fetcher when an archive dir is set")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("LOINC_ARCHIVE_DIR", t.TempDir())
	t.Setenv("EXPORT_FORMAT", "csv")

	cmd := transformCmd()
	if err := cmd.Flags().Set("format", "xlsx"); err != nil {
		t.Fatalf("set format: %v", err)
	}
	if err := cmd.Flags().Set("out", "/tmp/exports"); err != nil {
		t.Fatalf("set out: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportFormat != "xlsx" {
		t.Errorf("expected xlsx, got %s", cfg.ExportFormat)
	}
	if cfg.ExportDir != "/tmp/exports" {
		t.Errorf("expected /tmp/exports, got %s", cfg.ExportDir)
	}
}

func TestLoadConfig_RejectsBadFormat(t *testing.T) {
	t.Setenv("LOINC_ARCHIVE_DIR", t.TempDir())

	cmd := transformCmd()
	if err := cmd.Flags().Set("format", "json"); err != nil {
		t.Fatalf("set format: %v", err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Error("expected invalid format to be rejected")
	}
}

func TestSources(t *testing.T) {
	cfg := &config.Config{
		LOINCTableDownload:     "loinc-table-file-csv",
		LOINCTableFile:         "Loinc.csv",
		LOINCHierarchyDownload: "loinc-multiaxial-hierarchy",
		LOINCHierarchyFile:     "MultiAxialHierarchy.csv",
	}
	s := sources(cfg)
	if s.TableFile != "Loinc.csv" || s.HierarchyDownload != "loinc-multiaxial-hierarchy" {
		t.Errorf("unexpected sources %+v", s)
	}
}
