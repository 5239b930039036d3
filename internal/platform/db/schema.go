package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a Postgres schema or
// table name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// CreateSchema creates schema if it does not exist yet.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if !ValidIdentifier(schema) {
		return fmt.Errorf("invalid schema identifier: %q", schema)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize()))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}
