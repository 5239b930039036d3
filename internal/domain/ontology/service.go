package ontology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
)

// TransformResult is the outcome of one transform run.
type TransformResult struct {
	Concepts   []*Concept
	Excluded   []*MissingCodeError
	Filtered   []ConstraintViolation
	Considered int
	RunAt      time.Time
}

// Options tune the transform.
type Options struct {
	// LegacyFullName reproduces the historical C_FULLNAME rendering where every
	// segment carries the resolved code's own text.
	LegacyFullName bool
}

// Service turns LOINC source tables into ontology rows and hands them to a
// Repository.
type Service struct {
	repo   Repository
	opts   Options
	logger zerolog.Logger
}

// NewService creates a new ontology service. repo may be nil when only
// Transform is used.
func NewService(repo Repository, opts Options, logger zerolog.Logger) *Service {
	return &Service{repo: repo, opts: opts, logger: logger}
}

// Transform indexes tables and derives one row per distinct code. Records with
// lookup misses are excluded and reported; rows failing the not-null filter
// are dropped.
func (s *Service) Transform(tables *loinc.Tables, runAt time.Time) (*TransformResult, error) {
	if tables == nil {
		return nil, fmt.Errorf("source tables are required")
	}

	index := NewHierarchyIndex(tables.Codes, tables.Hierarchy)
	resolver := NewResolver(index, s.opts.LegacyFullName)
	assembler := NewAssembler(runAt)

	result := &TransformResult{
		Concepts:   make([]*Concept, 0, index.Len()),
		Considered: index.Len(),
		RunAt:      runAt,
	}

	for _, code := range index.Codes() {
		res, err := resolver.Resolve(code)
		if err != nil {
			var mce *MissingCodeError
			if errors.As(err, &mce) {
				s.logger.Warn().Str("code", mce.Code).Str("ref", mce.Ref).Str("index", mce.Index).Msg("excluding code")
				result.Excluded = append(result.Excluded, mce)
				continue
			}
			return nil, err
		}

		concept, violation := assembler.Assemble(res)
		if violation != nil {
			s.logger.Debug().Str("code", violation.Code).Str("column", violation.Column).Msg("row fails not-null constraint")
			result.Filtered = append(result.Filtered, *violation)
			continue
		}
		result.Concepts = append(result.Concepts, concept)
	}

	s.logger.Info().
		Int("codes", result.Considered).
		Int("rows", len(result.Concepts)).
		Int("excluded", len(result.Excluded)).
		Int("filtered", len(result.Filtered)).
		Msg("transform complete")

	return result, nil
}

// Load persists the rows of result.
func (s *Service) Load(ctx context.Context, result *TransformResult) (*LoadResult, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}
	if result == nil || len(result.Concepts) == 0 {
		return nil, fmt.Errorf("no rows to load")
	}
	return s.repo.Load(ctx, result.Concepts, result.RunAt)
}

// Snapshot returns the rows stored by the run stamped runAt.
func (s *Service) Snapshot(ctx context.Context, runAt time.Time) ([]*Concept, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}
	return s.repo.ListByUpdateDate(ctx, runAt)
}

// EnsureTable creates the ontology table if it does not exist yet.
func (s *Service) EnsureTable(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, fmt.Errorf("no repository configured")
	}
	return s.repo.EnsureTable(ctx)
}
