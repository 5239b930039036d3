package ontology

import (
	"context"
	"time"
)

// LoadResult describes one append to the ontology table.
type LoadResult struct {
	TableCreated bool
	ImportDate   time.Time
	Inserted     int64
}

// Repository persists ontology rows.
type Repository interface {
	// EnsureTable creates the table if absent and reports whether it did.
	EnsureTable(ctx context.Context) (bool, error)
	// Load appends concepts in one transaction. When the table already holds
	// rows, IMPORT_DATE is replaced by the earliest import date stored.
	Load(ctx context.Context, concepts []*Concept, runAt time.Time) (*LoadResult, error)
	// ListByUpdateDate returns the rows stamped with updateDate.
	ListByUpdateDate(ctx context.Context, updateDate time.Time) ([]*Concept, error)
}
