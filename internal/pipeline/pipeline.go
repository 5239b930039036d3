// Package pipeline wires fetching, decoding, transformation, loading and
// snapshot export into one run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
	"github.com/ehr/loinc-etl/internal/domain/ontology"
	"github.com/ehr/loinc-etl/internal/platform/export"
	"github.com/ehr/loinc-etl/internal/platform/source"
)

// Export file name prefixes.
const (
	InsertedPrefix    = "i2b2_inserted_rows"
	TransformedPrefix = "i2b2_transformed_rows"
)

// Sources names the downloads and the CSV entries inside them.
type Sources struct {
	TableDownload     string
	TableFile         string
	HierarchyDownload string
	HierarchyFile     string
}

// Exporter stores a rendered table under name.
type Exporter interface {
	Write(ctx context.Context, name string, format export.Format, table *export.Table) (string, error)
}

// Report summarises one run.
type Report struct {
	RunID          uuid.UUID
	RunAt          time.Time
	Codes          int
	Rows           int
	Excluded       int
	Filtered       int
	TableCreated   bool
	ImportDate     time.Time
	Inserted       int64
	ExportLocation string
	Duration       time.Duration
}

// Pipeline runs the ETL against one fetcher, service and exporter.
type Pipeline struct {
	fetcher  source.Fetcher
	service  *ontology.Service
	exporter Exporter
	sources  Sources
	format   export.Format
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a Pipeline. exporter may be nil to skip the snapshot export.
func New(fetcher source.Fetcher, service *ontology.Service, exporter Exporter, sources Sources, format export.Format, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		service:  service,
		exporter: exporter,
		sources:  sources,
		format:   format,
		logger:   logger,
		now:      time.Now,
	}
}

func fetchTable[T any](ctx context.Context, f source.Fetcher, download, file string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	archive, err := f.Fetch(ctx, download)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", download, err)
	}
	rc, err := source.ExtractFile(archive, file)
	if err != nil {
		return nil, fmt.Errorf("extract %s from %s: %w", file, download, err)
	}
	defer rc.Close()

	records, err := decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	return records, nil
}

// Extract fetches and decodes both source tables.
func (p *Pipeline) Extract(ctx context.Context) (*loinc.Tables, error) {
	return p.extract(ctx, p.logger)
}

func (p *Pipeline) extract(ctx context.Context, logger zerolog.Logger) (*loinc.Tables, error) {
	codes, err := fetchTable(ctx, p.fetcher, p.sources.TableDownload, p.sources.TableFile, loinc.DecodeCodes)
	if err != nil {
		return nil, err
	}
	hierarchy, err := fetchTable(ctx, p.fetcher, p.sources.HierarchyDownload, p.sources.HierarchyFile, loinc.DecodeHierarchy)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("codes", len(codes)).
		Int("hierarchy_rows", len(hierarchy)).
		Msg("extracted source tables")
	return &loinc.Tables{Codes: codes, Hierarchy: hierarchy}, nil
}

func (p *Pipeline) begin() (*Report, zerolog.Logger) {
	report := &Report{
		RunID: uuid.New(),
		// Timestamp columns carry second precision.
		RunAt: p.now().Truncate(time.Second),
	}
	logger := p.logger.With().Str("run_id", report.RunID.String()).Logger()
	return report, logger
}

func (p *Pipeline) transform(ctx context.Context, report *Report, logger zerolog.Logger) (*ontology.TransformResult, error) {
	tables, err := p.extract(ctx, logger)
	if err != nil {
		return nil, err
	}

	result, err := p.service.Transform(tables, report.RunAt)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	report.Codes = result.Considered
	report.Rows = len(result.Concepts)
	report.Excluded = len(result.Excluded)
	report.Filtered = len(result.Filtered)
	return result, nil
}

// Run extracts, transforms and loads one distribution, then exports the rows
// stored by this run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report, logger := p.begin()

	logger.Info().Time("run_at", report.RunAt).Msg("starting load")

	result, err := p.transform(ctx, report, logger)
	if err != nil {
		return nil, err
	}

	loaded, err := p.service.Load(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	report.TableCreated = loaded.TableCreated
	report.ImportDate = loaded.ImportDate
	report.Inserted = loaded.Inserted
	logger.Info().
		Bool("table_created", loaded.TableCreated).
		Time("import_date", loaded.ImportDate).
		Int64("inserted", loaded.Inserted).
		Msg("loaded rows")

	if p.exporter != nil {
		rows, err := p.service.Snapshot(ctx, report.RunAt)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		location, err := p.export(ctx, InsertedPrefix, report.RunAt, rows)
		if err != nil {
			return nil, err
		}
		report.ExportLocation = location
	}

	report.Duration = time.Since(start)
	logger.Info().Dur("duration", report.Duration).Msg("load complete")
	return report, nil
}

// Transform extracts and transforms without touching the database and
// exports the computed rows for review.
func (p *Pipeline) Transform(ctx context.Context) (*Report, error) {
	if p.exporter == nil {
		return nil, fmt.Errorf("no exporter configured")
	}

	start := time.Now()
	report, logger := p.begin()

	result, err := p.transform(ctx, report, logger)
	if err != nil {
		return nil, err
	}

	location, err := p.export(ctx, TransformedPrefix, report.RunAt, result.Concepts)
	if err != nil {
		return nil, err
	}
	report.ExportLocation = location

	report.Duration = time.Since(start)
	logger.Info().Dur("duration", report.Duration).Msg("transform complete")
	return report, nil
}

func (p *Pipeline) export(ctx context.Context, prefix string, runAt time.Time, concepts []*ontology.Concept) (string, error) {
	table := &export.Table{
		Columns: ontology.Columns,
		Rows:    make([][]string, 0, len(concepts)),
	}
	for _, c := range concepts {
		table.Rows = append(table.Rows, c.Strings())
	}

	name := export.FileName(prefix, runAt, p.format)
	location, err := p.exporter.Write(ctx, name, p.format, table)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	return location, nil
}
