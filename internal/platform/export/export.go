// Package export renders tabular snapshots as CSV or XLSX and stores them
// through afs, so the destination can be a local directory or any afs URL.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet XLSX exports are written to.
const SheetName = "i2b2"

// ParseFormat validates s as an export format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q, want %q or %q", s, FormatCSV, FormatXLSX)
}

// Table is a header plus rows of string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// FileName returns <prefix>_<dd-mm-yyyy>.<format>.
func FileName(prefix string, date time.Time, format Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, date.Format("02-01-2006"), format)
}

// Encode writes table to w in format.
func Encode(w io.Writer, format Format, table *Table) error {
	switch format {
	case FormatCSV:
		return encodeCSV(w, table)
	case FormatXLSX:
		return encodeXLSX(w, table)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func encodeCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func encodeXLSX(w io.Writer, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: col}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("convert coordinates: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Writer stores encoded tables under a base directory or URL.
type Writer struct {
	dir    string
	fs     afs.Service
	logger zerolog.Logger
}

// NewWriter returns a Writer storing files under dir. A relative local dir
// is resolved against the working directory.
func NewWriter(dir string, logger zerolog.Logger) *Writer {
	return &Writer{dir: absolute(dir), fs: afs.New(), logger: logger}
}

func absolute(dir string) string {
	if strings.Contains(dir, "://") {
		return dir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// Write encodes table and stores it as name. It returns the destination URL.
func (w *Writer) Write(ctx context.Context, name string, format Format, table *Table) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, format, table); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	location := url.Join(w.dir, name)
	if err := w.fs.Upload(ctx, location, 0o644, &buf); err != nil {
		return "", fmt.Errorf("store %s: %w", location, err)
	}

	w.logger.Info().
		Str("location", location).
		Str("format", string(format)).
		Int("rows", len(table.Rows)).
		Msg("wrote export")
	return location, nil
}
