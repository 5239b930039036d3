package ontology

import (
	"strings"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
)

// MissingValue stands in for an absent source field in C_NAME and
// C_METADATAXML, matching how legacy loads rendered empty cells.
const MissingValue = "nan"

// HierarchyIndex holds the read-only lookups derived from one distribution.
// It is fully built by NewHierarchyIndex and never modified afterwards, so it
// is safe for concurrent reads.
type HierarchyIndex struct {
	pathByCode      map[string]string
	textByCode      map[string]string
	concatByCode    map[string]string
	parentFrequency map[string]int
	statusByCode    map[string]string
	records         map[string]loinc.CodeRecord
	codes           []string
}

// NewHierarchyIndex builds the index from both source tables. When a code has
// several hierarchy rows the last one wins for path and text.
func NewHierarchyIndex(codes []loinc.CodeRecord, hierarchy []loinc.HierarchyRecord) *HierarchyIndex {
	idx := &HierarchyIndex{
		pathByCode:      make(map[string]string, len(hierarchy)),
		textByCode:      make(map[string]string, len(hierarchy)),
		concatByCode:    make(map[string]string, len(codes)),
		parentFrequency: make(map[string]int),
		statusByCode:    make(map[string]string, len(codes)),
		records:         make(map[string]loinc.CodeRecord, len(codes)),
	}

	seen := make(map[string]bool, len(codes)+len(hierarchy))
	addCode := func(code string) {
		if !seen[code] {
			seen[code] = true
			idx.codes = append(idx.codes, code)
		}
	}

	for _, rec := range codes {
		idx.records[rec.Code] = rec
		idx.statusByCode[rec.Code] = rec.Status
		idx.concatByCode[rec.Code] = concatAxes(rec)
		addCode(rec.Code)
	}

	for _, rec := range hierarchy {
		idx.pathByCode[rec.Code] = rec.PathToRoot
		idx.textByCode[rec.Code] = rec.CodeText
		if !rec.IsTopLevel() {
			idx.parentFrequency[rec.ImmediateParent]++
		}
		addCode(rec.Code)
	}

	return idx
}

func concatAxes(rec loinc.CodeRecord) string {
	return strings.Join([]string{
		orMissing(rec.Component),
		orMissing(rec.Property),
		orMissing(rec.TimeAspect),
		orMissing(rec.System),
		orMissing(rec.ScaleType),
		orMissing(rec.MethodType),
	}, ":")
}

func orMissing(v string) string {
	if v == "" {
		return MissingValue
	}
	return v
}

// Codes returns every distinct code: code table order first, then codes only
// present in the hierarchy in order of first appearance.
func (idx *HierarchyIndex) Codes() []string {
	out := make([]string, len(idx.codes))
	copy(out, idx.codes)
	return out
}

// Path returns the dot-joined PATH_TO_ROOT of code.
func (idx *HierarchyIndex) Path(code string) (string, bool) {
	p, ok := idx.pathByCode[code]
	return p, ok
}

// Text returns the CODE_TEXT of code.
func (idx *HierarchyIndex) Text(code string) (string, bool) {
	t, ok := idx.textByCode[code]
	return t, ok
}

// Concat returns the component:property:timeAspect:system:scale:method name.
func (idx *HierarchyIndex) Concat(code string) (string, bool) {
	c, ok := idx.concatByCode[code]
	return c, ok
}

// ChildCount returns how many hierarchy rows name code as immediate parent.
func (idx *HierarchyIndex) ChildCount(code string) int {
	return idx.parentFrequency[code]
}

// Status returns the code table STATUS of code.
func (idx *HierarchyIndex) Status(code string) (string, bool) {
	s, ok := idx.statusByCode[code]
	return s, ok
}

// Record returns the code table row of code.
func (idx *HierarchyIndex) Record(code string) (loinc.CodeRecord, bool) {
	r, ok := idx.records[code]
	return r, ok
}

// IsHierarchyNode reports whether code is a hierarchy-only node: an LP part
// code or any code without a code table row.
func (idx *HierarchyIndex) IsHierarchyNode(code string) bool {
	if loinc.IsPart(code) {
		return true
	}
	_, ok := idx.records[code]
	return !ok
}

// Len returns the number of distinct codes.
func (idx *HierarchyIndex) Len() int {
	return len(idx.codes)
}
