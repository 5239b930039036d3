package ontology

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
)

// Column length limits in characters, matching the ontology table DDL.
var Limits = map[string]int{
	"c_fullname":        700,
	"c_name":            2000,
	"c_basecode":        50,
	"c_facttablecolumn": 50,
	"c_tablename":       50,
	"c_columnname":      50,
	"c_columndatatype":  50,
	"c_operator":        10,
	"c_dimcode":         700,
	"c_tooltip":         900,
	"c_path":            700,
	"c_symbol":          50,
}

// Truncate cuts s to at most n characters. Strings already within the limit
// are returned unchanged.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Assembler turns Resolutions into ontology rows stamped with one run time.
type Assembler struct {
	runAt time.Time
}

// NewAssembler returns an Assembler stamping rows with runAt.
func NewAssembler(runAt time.Time) *Assembler {
	return &Assembler{runAt: runAt}
}

// Assemble builds the row for res. A row failing the not-null constraints is
// returned as nil with the violated column.
func (a *Assembler) Assemble(res *Resolution) (*Concept, *ConstraintViolation) {
	dataType := DataTypeText
	if res.ScaleType == loinc.ScaleQuantitative {
		dataType = DataTypeNumeric
	}

	c := &Concept{
		HLevel:           res.Level,
		FullName:         res.FullName,
		Name:             res.Name,
		SynonymCD:        SynonymCD,
		VisualAttributes: res.VisualAttributes,
		BaseCode:         BaseCodePrefix + res.Code,
		MetadataXML:      res.MetadataXML,
		FactTableColumn:  FactTableColumn,
		TableName:        TableName,
		ColumnName:       ColumnName,
		ColumnDataType:   dataType,
		Operator:         Operator,
		DimCode:          res.FullName,
		Tooltip:          res.FullName,
		AppliedPath:      AppliedPath,
		UpdateDate:       a.runAt,
		DownloadDate:     a.runAt,
		ImportDate:       a.runAt,
		SourceSystemCD:   SourceSystemCD,
		ValueTypeCD:      ValueTypeCD,
		Path:             parentPath(res.FullName),
		Symbol:           res.Text,
	}

	if col := firstEmptyRequired(c); col != "" {
		return nil, &ConstraintViolation{Code: res.Code, Column: col}
	}
	return capLengths(c), nil
}

// parentPath returns fullName up to, not including, its last separator.
func parentPath(fullName string) string {
	i := strings.LastIndex(fullName, `\`)
	if i < 0 {
		return fullName
	}
	return fullName[:i]
}

func firstEmptyRequired(c *Concept) string {
	if c.HLevel <= 0 {
		return "c_hlevel"
	}
	required := []struct {
		col string
		val string
	}{
		{"c_fullname", c.FullName},
		{"c_name", c.Name},
		{"c_synonym_cd", c.SynonymCD},
		{"c_visualattributes", c.VisualAttributes},
		{"c_facttablecolumn", c.FactTableColumn},
		{"c_tablename", c.TableName},
		{"c_columnname", c.ColumnName},
		{"c_columndatatype", c.ColumnDataType},
		{"c_operator", c.Operator},
		{"c_dimcode", c.DimCode},
		{"m_applied_path", c.AppliedPath},
	}
	for _, r := range required {
		if r.val == "" {
			return r.col
		}
	}
	if c.UpdateDate.IsZero() {
		return "update_date"
	}
	return ""
}

// capLengths returns a copy of c with every limited column truncated.
func capLengths(c *Concept) *Concept {
	out := *c
	out.FullName = Truncate(c.FullName, Limits["c_fullname"])
	out.Name = Truncate(c.Name, Limits["c_name"])
	out.BaseCode = Truncate(c.BaseCode, Limits["c_basecode"])
	out.FactTableColumn = Truncate(c.FactTableColumn, Limits["c_facttablecolumn"])
	out.TableName = Truncate(c.TableName, Limits["c_tablename"])
	out.ColumnName = Truncate(c.ColumnName, Limits["c_columnname"])
	out.ColumnDataType = Truncate(c.ColumnDataType, Limits["c_columndatatype"])
	out.Operator = Truncate(c.Operator, Limits["c_operator"])
	out.DimCode = Truncate(c.DimCode, Limits["c_dimcode"])
	out.Tooltip = Truncate(c.Tooltip, Limits["c_tooltip"])
	out.Path = Truncate(c.Path, Limits["c_path"])
	out.Symbol = Truncate(c.Symbol, Limits["c_symbol"])
	return &out
}
