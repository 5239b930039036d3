package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/loinc-etl/internal/platform/db"
	"github.com/ehr/loinc-etl/internal/platform/export"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	OntologySchema string `mapstructure:"ONTOLOGY_SCHEMA"`
	OntologyTable  string `mapstructure:"ONTOLOGY_TABLE"`

	LOINCBaseURL           string `mapstructure:"LOINC_BASE_URL"`
	LOINCUsername          string `mapstructure:"LOINC_USERNAME"`
	LOINCPassword          string `mapstructure:"LOINC_PASSWORD"`
	LOINCArchiveDir        string `mapstructure:"LOINC_ARCHIVE_DIR"`
	LOINCTableDownload     string `mapstructure:"LOINC_TABLE_DOWNLOAD"`
	LOINCTableFile         string `mapstructure:"LOINC_TABLE_FILE"`
	LOINCHierarchyDownload string `mapstructure:"LOINC_HIERARCHY_DOWNLOAD"`
	LOINCHierarchyFile     string `mapstructure:"LOINC_HIERARCHY_FILE"`

	HTTPTimeout    time.Duration `mapstructure:"HTTP_TIMEOUT"`
	HTTPRetryCount int           `mapstructure:"HTTP_RETRY_COUNT"`

	ExportDir    string `mapstructure:"EXPORT_DIR"`
	ExportFormat string `mapstructure:"EXPORT_FORMAT"`

	LegacyFullName bool `mapstructure:"LEGACY_FULLNAME"`
}

var keys = []string{
	"ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"ONTOLOGY_SCHEMA", "ONTOLOGY_TABLE",
	"LOINC_BASE_URL", "LOINC_USERNAME", "LOINC_PASSWORD", "LOINC_ARCHIVE_DIR",
	"LOINC_TABLE_DOWNLOAD", "LOINC_TABLE_FILE",
	"LOINC_HIERARCHY_DOWNLOAD", "LOINC_HIERARCHY_FILE",
	"HTTP_TIMEOUT", "HTTP_RETRY_COUNT",
	"EXPORT_DIR", "EXPORT_FORMAT",
	"LEGACY_FULLNAME",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("ONTOLOGY_SCHEMA", "public")
	v.SetDefault("ONTOLOGY_TABLE", "i2b2")
	v.SetDefault("LOINC_BASE_URL", "https://loinc.org")
	v.SetDefault("LOINC_TABLE_DOWNLOAD", "loinc-table-file-csv")
	v.SetDefault("LOINC_TABLE_FILE", "Loinc.csv")
	v.SetDefault("LOINC_HIERARCHY_DOWNLOAD", "loinc-multiaxial-hierarchy")
	v.SetDefault("LOINC_HIERARCHY_FILE", "MultiAxialHierarchy.csv")
	v.SetDefault("HTTP_TIMEOUT", "5m")
	v.SetDefault("HTTP_RETRY_COUNT", 3)
	v.SetDefault("EXPORT_DIR", ".")
	v.SetDefault("EXPORT_FORMAT", string(export.FormatCSV))
	v.SetDefault("LEGACY_FULLNAME", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesArchiveDir reports whether distributions are read from a local or
// remote directory instead of being downloaded from loinc.org.
func (c *Config) UsesArchiveDir() bool {
	return c.LOINCArchiveDir != ""
}

// Validate checks the settings every command needs. Database settings are
// checked separately by RequireDatabase since transform runs without one.
func (c *Config) Validate() error {
	if _, err := export.ParseFormat(c.ExportFormat); err != nil {
		return fmt.Errorf("EXPORT_FORMAT: %w", err)
	}
	if !db.ValidIdentifier(c.OntologySchema) {
		return fmt.Errorf("ONTOLOGY_SCHEMA %q is not a valid identifier", c.OntologySchema)
	}
	if !db.ValidIdentifier(c.OntologyTable) {
		return fmt.Errorf("ONTOLOGY_TABLE %q is not a valid identifier", c.OntologyTable)
	}
	if !c.UsesArchiveDir() && (c.LOINCUsername == "" || c.LOINCPassword == "") {
		return fmt.Errorf("LOINC_USERNAME and LOINC_PASSWORD are required unless LOINC_ARCHIVE_DIR is set")
	}
	if c.LOINCTableFile == "" || c.LOINCHierarchyFile == "" {
		return fmt.Errorf("LOINC_TABLE_FILE and LOINC_HIERARCHY_FILE must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.HTTPRetryCount < 0 {
		return fmt.Errorf("HTTP_RETRY_COUNT must not be negative, got %d", c.HTTPRetryCount)
	}
	return nil
}

// RequireDatabase checks the settings of commands that connect to Postgres.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}
	return nil
}
