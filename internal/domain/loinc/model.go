package loinc

import "strings"

// StatusActive is the LOINC STATUS value of a code in current use.
const StatusActive = "ACTIVE"

// ScaleQuantitative is the SCALE_TYP value of numeric results.
const ScaleQuantitative = "Qn"

// PartPrefix marks LOINC part codes (LPxxxx) which only exist in the hierarchy.
const PartPrefix = "LP"

// CodeRecord is one row of the LOINC code table (Loinc.csv).
type CodeRecord struct {
	Code       string
	Component  string
	Property   string
	TimeAspect string
	System     string
	ScaleType  string
	MethodType string
	Status     string
}

// IsActive reports whether the code's status is ACTIVE.
func (r CodeRecord) IsActive() bool {
	return r.Status == StatusActive
}

// IsQuantitative reports whether the code carries numeric results.
func (r CodeRecord) IsQuantitative() bool {
	return r.ScaleType == ScaleQuantitative
}

// HierarchyRecord is one row of the multi-axial hierarchy table
// (MultiAxialHierarchy.csv). A code appears once per parent.
type HierarchyRecord struct {
	Code            string
	PathToRoot      string
	CodeText        string
	ImmediateParent string
}

// Ancestors splits PathToRoot into its ordered ancestor codes, root first.
// A top-level code has an empty path and no ancestors.
func (r HierarchyRecord) Ancestors() []string {
	return SplitPath(r.PathToRoot)
}

// IsTopLevel reports whether the record has no immediate parent.
func (r HierarchyRecord) IsTopLevel() bool {
	return r.ImmediateParent == ""
}

// SplitPath splits a dot-joined PATH_TO_ROOT value.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// IsPart reports whether code is an LP-prefixed LOINC part code.
func IsPart(code string) bool {
	return strings.HasPrefix(code, PartPrefix)
}

// Tables holds both decoded source tables of one distribution.
type Tables struct {
	Codes     []CodeRecord
	Hierarchy []HierarchyRecord
}
