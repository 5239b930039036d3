package ontology

import (
	"strconv"
	"time"
)

// Static column values shared by every LOINC concept row.
const (
	SynonymCD       = "N"
	FactTableColumn = "CONCEPT_CD"
	TableName       = "CONCEPT_DIMENSION"
	ColumnName      = "CONCEPT_PATH"
	Operator        = "LIKE"
	SourceSystemCD  = "LOINC"
	ValueTypeCD     = "LAB"
	AppliedPath     = "@"
	BaseCodePrefix  = "LOINC:"

	DataTypeNumeric = "N"
	DataTypeText    = "T"
)

// TimestampLayout is how timestamp columns are rendered in exports.
const TimestampLayout = "2006-01-02 15:04:05"

// Concept is one row of the i2b2 ontology table.
type Concept struct {
	HLevel           int       `db:"c_hlevel" json:"c_hlevel"`
	FullName         string    `db:"c_fullname" json:"c_fullname"`
	Name             string    `db:"c_name" json:"c_name"`
	SynonymCD        string    `db:"c_synonym_cd" json:"c_synonym_cd"`
	VisualAttributes string    `db:"c_visualattributes" json:"c_visualattributes"`
	TotalNum         *int      `db:"c_totalnum" json:"c_totalnum,omitempty"`
	BaseCode         string    `db:"c_basecode" json:"c_basecode"`
	MetadataXML      string    `db:"c_metadataxml" json:"c_metadataxml"`
	FactTableColumn  string    `db:"c_facttablecolumn" json:"c_facttablecolumn"`
	TableName        string    `db:"c_tablename" json:"c_tablename"`
	ColumnName       string    `db:"c_columnname" json:"c_columnname"`
	ColumnDataType   string    `db:"c_columndatatype" json:"c_columndatatype"`
	Operator         string    `db:"c_operator" json:"c_operator"`
	DimCode          string    `db:"c_dimcode" json:"c_dimcode"`
	Comment          *string   `db:"c_comment" json:"c_comment,omitempty"`
	Tooltip          string    `db:"c_tooltip" json:"c_tooltip"`
	AppliedPath      string    `db:"m_applied_path" json:"m_applied_path"`
	UpdateDate       time.Time `db:"update_date" json:"update_date"`
	DownloadDate     time.Time `db:"download_date" json:"download_date"`
	ImportDate       time.Time `db:"import_date" json:"import_date"`
	SourceSystemCD   string    `db:"sourcesystem_cd" json:"sourcesystem_cd"`
	ValueTypeCD      string    `db:"valuetype_cd" json:"valuetype_cd"`
	ExclusionCD      *string   `db:"m_exclusion_cd" json:"m_exclusion_cd,omitempty"`
	Path             string    `db:"c_path" json:"c_path"`
	Symbol           string    `db:"c_symbol" json:"c_symbol"`
}

// Columns lists the ontology table columns in table order.
var Columns = []string{
	"c_hlevel", "c_fullname", "c_name", "c_synonym_cd", "c_visualattributes",
	"c_totalnum", "c_basecode", "c_metadataxml", "c_facttablecolumn", "c_tablename",
	"c_columnname", "c_columndatatype", "c_operator", "c_dimcode", "c_comment",
	"c_tooltip", "m_applied_path", "update_date", "download_date", "import_date",
	"sourcesystem_cd", "valuetype_cd", "m_exclusion_cd", "c_path", "c_symbol",
}

// Values returns the row in Columns order with importDate in place of the
// concept's own import date. The concept itself is not modified.
func (c *Concept) Values(importDate time.Time) []any {
	return []any{
		c.HLevel, c.FullName, c.Name, c.SynonymCD, c.VisualAttributes,
		c.TotalNum, c.BaseCode, c.MetadataXML, c.FactTableColumn, c.TableName,
		c.ColumnName, c.ColumnDataType, c.Operator, c.DimCode, c.Comment,
		c.Tooltip, c.AppliedPath, c.UpdateDate, c.DownloadDate, importDate,
		c.SourceSystemCD, c.ValueTypeCD, c.ExclusionCD, c.Path, c.Symbol,
	}
}

// Strings renders the row in Columns order for export. NULL renders empty.
func (c *Concept) Strings() []string {
	return []string{
		strconv.Itoa(c.HLevel), c.FullName, c.Name, c.SynonymCD, c.VisualAttributes,
		intOrEmpty(c.TotalNum), c.BaseCode, c.MetadataXML, c.FactTableColumn, c.TableName,
		c.ColumnName, c.ColumnDataType, c.Operator, c.DimCode, strOrEmpty(c.Comment),
		c.Tooltip, c.AppliedPath, formatTime(c.UpdateDate), formatTime(c.DownloadDate), formatTime(c.ImportDate),
		c.SourceSystemCD, c.ValueTypeCD, strOrEmpty(c.ExclusionCD), c.Path, c.Symbol,
	}
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}
