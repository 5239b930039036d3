package ontology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// createTableDDL mirrors the i2b2 ontology table definition. %s is the
// sanitized table identifier.
const createTableDDL = `CREATE TABLE IF NOT EXISTS %s (
	c_hlevel INT NOT NULL,
	c_fullname VARCHAR(700) NOT NULL,
	c_name VARCHAR(2000) NOT NULL,
	c_synonym_cd CHAR(1) NOT NULL,
	c_visualattributes CHAR(3) NOT NULL,
	c_totalnum INT NULL,
	c_basecode VARCHAR(50) NULL,
	c_metadataxml TEXT NULL,
	c_facttablecolumn VARCHAR(50) NOT NULL,
	c_tablename VARCHAR(50) NOT NULL,
	c_columnname VARCHAR(50) NOT NULL,
	c_columndatatype VARCHAR(50) NOT NULL,
	c_operator VARCHAR(10) NOT NULL,
	c_dimcode VARCHAR(700) NOT NULL,
	c_comment TEXT NULL,
	c_tooltip VARCHAR(900) NULL,
	m_applied_path VARCHAR(700) NOT NULL,
	update_date TIMESTAMP NOT NULL,
	download_date TIMESTAMP NULL,
	import_date TIMESTAMP NULL,
	sourcesystem_cd VARCHAR(50) NULL,
	valuetype_cd VARCHAR(50) NULL,
	m_exclusion_cd VARCHAR(25) NULL,
	c_path VARCHAR(700) NULL,
	c_symbol VARCHAR(50) NULL
)`

type conceptRepoPG struct {
	pool   *pgxpool.Pool
	schema string
	table  string
}

// NewConceptRepoPG returns a Repository writing to schema.table. Both names
// must already be validated identifiers.
func NewConceptRepoPG(pool *pgxpool.Pool, schema, table string) Repository {
	return &conceptRepoPG{pool: pool, schema: schema, table: table}
}

func (r *conceptRepoPG) ident() pgx.Identifier {
	return pgx.Identifier{r.schema, r.table}
}

func (r *conceptRepoPG) tableExists(ctx context.Context, tx pgx.Tx) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		r.schema, r.table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", r.ident().Sanitize(), err)
	}
	return exists, nil
}

func (r *conceptRepoPG) createTable(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(createTableDDL, r.ident().Sanitize())); err != nil {
		return fmt.Errorf("create table %s: %w", r.ident().Sanitize(), err)
	}
	return nil
}

func (r *conceptRepoPG) EnsureTable(ctx context.Context) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	exists, err := r.tableExists(ctx, tx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.createTable(ctx, tx); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *conceptRepoPG) Load(ctx context.Context, concepts []*Concept, runAt time.Time) (*LoadResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &LoadResult{ImportDate: runAt}

	exists, err := r.tableExists(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := r.createTable(ctx, tx); err != nil {
			return nil, err
		}
		result.TableCreated = true
	} else {
		var first *time.Time
		err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT MIN(import_date) FROM %s`, r.ident().Sanitize())).Scan(&first)
		if err != nil {
			return nil, fmt.Errorf("query first import date: %w", err)
		}
		if first != nil {
			result.ImportDate = *first
		}
	}

	copied, err := tx.CopyFrom(ctx, r.ident(), Columns, pgx.CopyFromSlice(len(concepts), func(i int) ([]any, error) {
		return concepts[i].Values(result.ImportDate), nil
	}))
	if err != nil {
		return nil, fmt.Errorf("copy concepts: %w", err)
	}

	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE update_date = $1`, r.ident().Sanitize()),
		runAt).Scan(&result.Inserted)
	if err != nil {
		return nil, fmt.Errorf("count inserted rows: %w", err)
	}
	if result.Inserted < copied {
		return nil, fmt.Errorf("copied %d rows but only %d carry update date %s", copied, result.Inserted, runAt.Format(TimestampLayout))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit load: %w", err)
	}
	return result, nil
}

func (r *conceptRepoPG) ListByUpdateDate(ctx context.Context, updateDate time.Time) ([]*Concept, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE update_date = $1 ORDER BY c_fullname`,
			strings.Join(Columns, ", "), r.ident().Sanitize()),
		updateDate)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var results []*Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func scanConcept(row pgx.Row) (*Concept, error) {
	var (
		c                                              Concept
		baseCode, metadata, tooltip, source, valueType *string
		path, symbol                                   *string
		downloadDate, importDate                       *time.Time
	)
	err := row.Scan(
		&c.HLevel, &c.FullName, &c.Name, &c.SynonymCD, &c.VisualAttributes,
		&c.TotalNum, &baseCode, &metadata, &c.FactTableColumn, &c.TableName,
		&c.ColumnName, &c.ColumnDataType, &c.Operator, &c.DimCode, &c.Comment,
		&tooltip, &c.AppliedPath, &c.UpdateDate, &downloadDate, &importDate,
		&source, &valueType, &c.ExclusionCD, &path, &symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("scan concept: %w", err)
	}
	// CHAR(n) columns come back blank-padded.
	c.VisualAttributes = strings.TrimRight(c.VisualAttributes, " ")
	c.BaseCode = deref(baseCode)
	c.MetadataXML = deref(metadata)
	c.Tooltip = deref(tooltip)
	c.SourceSystemCD = deref(source)
	c.ValueTypeCD = deref(valueType)
	c.Path = deref(path)
	c.Symbol = deref(symbol)
	if downloadDate != nil {
		c.DownloadDate = *downloadDate
	}
	if importDate != nil {
		c.ImportDate = *importDate
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
