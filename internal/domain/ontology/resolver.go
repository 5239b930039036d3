package ontology

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
)

// RootPath is the fixed i2b2 prefix every laboratory concept lives under.
const RootPath = `\i2b2\Laboratory`

// levelOffset accounts for the i2b2 root, the Laboratory folder and the code itself.
const levelOffset = 3

// Visual attribute slots.
const (
	visualMultiFolder = "M"
	visualFolder      = "F"
	visualLeaf        = "L"
	visualActive      = "A"
	visualInactive    = "I"
	visualEditable    = "E"
)

// Resolution is everything derived for one code from the hierarchy index.
type Resolution struct {
	Code             string
	Level            int
	FullName         string
	Name             string
	VisualAttributes string
	MetadataXML      string
	Text             string
	ScaleType        string
}

// Resolver derives per-code path and attribute fields from a HierarchyIndex.
type Resolver struct {
	index *HierarchyIndex

	// legacyFullName renders every C_FULLNAME segment with the resolved
	// code's own text instead of each ancestor's text.
	legacyFullName bool
}

// NewResolver returns a Resolver reading from index.
func NewResolver(index *HierarchyIndex, legacyFullName bool) *Resolver {
	return &Resolver{index: index, legacyFullName: legacyFullName}
}

// Resolve computes the Resolution of code. Any lookup miss is returned as a
// *MissingCodeError.
func (r *Resolver) Resolve(code string) (*Resolution, error) {
	path, ok := r.index.Path(code)
	if !ok {
		return nil, &MissingCodeError{Code: code, Ref: code, Index: IndexPath}
	}
	text, ok := r.index.Text(code)
	if !ok {
		return nil, &MissingCodeError{Code: code, Ref: code, Index: IndexText}
	}

	ancestors := loinc.SplitPath(path)

	fullName, err := r.fullName(code, text, ancestors)
	if err != nil {
		return nil, err
	}

	metadata, err := r.metadataXML(code, text)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Code:             code,
		Level:            len(ancestors) + levelOffset,
		FullName:         fullName,
		Name:             r.name(code, text),
		VisualAttributes: r.visualAttributes(code),
		MetadataXML:      metadata,
		Text:             text,
	}
	if rec, ok := r.index.Record(code); ok {
		res.ScaleType = rec.ScaleType
	}
	return res, nil
}

func (r *Resolver) fullName(code, text string, ancestors []string) (string, error) {
	var b strings.Builder
	b.WriteString(RootPath)
	for _, a := range ancestors {
		segText := text
		if !r.legacyFullName {
			t, ok := r.index.Text(a)
			if !ok {
				return "", &MissingCodeError{Code: code, Ref: a, Index: IndexText}
			}
			segText = t
		}
		writeSegment(&b, a, segText)
	}
	writeSegment(&b, code, text)
	return b.String(), nil
}

func writeSegment(b *strings.Builder, code, text string) {
	b.WriteString(`\(`)
	b.WriteString(code)
	b.WriteString(") ")
	b.WriteString(text)
}

func (r *Resolver) name(code, text string) string {
	if r.index.IsHierarchyNode(code) {
		return text
	}
	concat, _ := r.index.Concat(code)
	return concat
}

func (r *Resolver) visualAttributes(code string) string {
	var b strings.Builder
	folder := true
	switch n := r.index.ChildCount(code); {
	case n > 1:
		b.WriteString(visualMultiFolder)
	case n == 1:
		b.WriteString(visualFolder)
	default:
		folder = false
		b.WriteString(visualLeaf)
	}

	// Hierarchy-only nodes carry no STATUS and are always shown as active.
	status, ok := r.index.Status(code)
	if !ok || status == loinc.StatusActive {
		b.WriteString(visualActive)
	} else {
		b.WriteString(visualInactive)
	}

	if folder {
		b.WriteString(visualEditable)
	}
	return b.String()
}

type hierarchyMetadata struct {
	XMLName  xml.Name `xml:"MultiAxialHierarchy"`
	LOINCNum string   `xml:"LOINC_NUM"`
	CodeText string   `xml:"CODE_TEXT"`
}

type codeMetadata struct {
	XMLName    xml.Name `xml:"Loinc"`
	LOINCNum   string   `xml:"LOINC_NUM"`
	Component  string   `xml:"COMPONENT"`
	System     string   `xml:"SYSTEM"`
	MethodType string   `xml:"METHOD_TYP"`
}

func (r *Resolver) metadataXML(code, text string) (string, error) {
	var doc interface{}
	if r.index.IsHierarchyNode(code) {
		doc = hierarchyMetadata{LOINCNum: code, CodeText: orMissing(text)}
	} else {
		rec, _ := r.index.Record(code)
		doc = codeMetadata{
			LOINCNum:   code,
			Component:  orMissing(rec.Component),
			System:     orMissing(rec.System),
			MethodType: orMissing(rec.MethodType),
		}
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal metadata for %s: %w", code, err)
	}
	return textEscapes.Replace(string(out)), nil
}

// textEscapes undoes the character references encoding/xml emits for quotes
// and whitespace. Element text only needs &, < and > escaped, and leaving the
// rest literal keeps C_METADATAXML identical to previously loaded rows.
var textEscapes = strings.NewReplacer(
	"&#39;", "'",
	"&#34;", `"`,
	"&#x9;", "\t",
	"&#xA;", "\n",
	"&#xD;", "\r",
)
