package loinc

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSchemaMismatch is matched by every *SchemaMismatchError.
var ErrSchemaMismatch = errors.New("source table does not match expected schema")

// SchemaMismatchError reports a required column absent from a source table.
type SchemaMismatchError struct {
	Table  string
	Column string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: required column %s is missing", e.Table, e.Column)
}

// Is lets errors.Is(err, ErrSchemaMismatch) match.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Table names used in errors and logs.
const (
	CodeTableName      = "Loinc"
	HierarchyTableName = "MultiAxialHierarchy"
)

// Code table columns.
const (
	ColLOINCNum   = "LOINC_NUM"
	ColComponent  = "COMPONENT"
	ColProperty   = "PROPERTY"
	ColTimeAspect = "TIME_ASPCT"
	ColSystem     = "SYSTEM"
	ColScaleType  = "SCALE_TYP"
	ColMethodType = "METHOD_TYP"
	ColStatus     = "STATUS"
)

// Hierarchy table columns.
const (
	ColPathToRoot      = "PATH_TO_ROOT"
	ColImmediateParent = "IMMEDIATE_PARENT"
	ColCode            = "CODE"
	ColCodeText        = "CODE_TEXT"
)

var codeColumns = []string{
	ColLOINCNum, ColComponent, ColProperty, ColTimeAspect,
	ColSystem, ColScaleType, ColMethodType, ColStatus,
}

var hierarchyColumns = []string{
	ColPathToRoot, ColImmediateParent, ColCode, ColCodeText,
}

// header maps upper-cased column names to their position.
type header map[string]int

func indexHeader(table string, row []string, required []string) (header, error) {
	h := make(header, len(row))
	for i, c := range row {
		h[strings.ToUpper(strings.TrimSpace(c))] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, &SchemaMismatchError{Table: table, Column: col}
		}
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i := h[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newReader skips the UTF-8 byte order mark some LOINC releases ship with.
func newReader(r io.Reader) *csv.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// readTable reads the header row, validates it, then calls fn for each data row.
func readTable(r io.Reader, table string, required []string, fn func(h header, row []string)) error {
	cr := newReader(r)
	first, err := cr.Read()
	if err == io.EOF {
		return &SchemaMismatchError{Table: table, Column: required[0]}
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", table, err)
	}
	h, err := indexHeader(table, first, required)
	if err != nil {
		return err
	}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", table, err)
		}
		fn(h, row)
	}
}

// DecodeCodes decodes the LOINC code table. Rows without a LOINC_NUM are skipped.
func DecodeCodes(r io.Reader) ([]CodeRecord, error) {
	var records []CodeRecord
	err := readTable(r, CodeTableName, codeColumns, func(h header, row []string) {
		rec := CodeRecord{
			Code:       h.get(row, ColLOINCNum),
			Component:  h.get(row, ColComponent),
			Property:   h.get(row, ColProperty),
			TimeAspect: h.get(row, ColTimeAspect),
			System:     h.get(row, ColSystem),
			ScaleType:  h.get(row, ColScaleType),
			MethodType: h.get(row, ColMethodType),
			Status:     h.get(row, ColStatus),
		}
		if rec.Code != "" {
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeHierarchy decodes the multi-axial hierarchy table. Rows without a CODE
// are skipped.
func DecodeHierarchy(r io.Reader) ([]HierarchyRecord, error) {
	var records []HierarchyRecord
	err := readTable(r, HierarchyTableName, hierarchyColumns, func(h header, row []string) {
		rec := HierarchyRecord{
			Code:            h.get(row, ColCode),
			PathToRoot:      h.get(row, ColPathToRoot),
			CodeText:        h.get(row, ColCodeText),
			ImmediateParent: h.get(row, ColImmediateParent),
		}
		if rec.Code != "" {
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
