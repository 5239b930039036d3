package ontology

import (
	"errors"
	"strings"
	"testing"

	"github.com/ehr/loinc-etl/internal/domain/loinc"
)

func glucoseIndex() *HierarchyIndex {
	codes := []loinc.CodeRecord{
		{Code: "1234-5", Component: "Glucose", Property: "MCnc", TimeAspect: "Pt", System: "Ser/Plas", ScaleType: "Qn", MethodType: "", Status: "ACTIVE"},
		{Code: "9999-1", Component: "Old", ScaleType: "Ord", Status: "DEPRECATED"},
	}
	hierarchy := []loinc.HierarchyRecord{
		{Code: "LP1", PathToRoot: "", CodeText: "Laboratory"},
		{Code: "LP2", PathToRoot: "LP1", CodeText: "Chemistry", ImmediateParent: "LP1"},
		{Code: "1234-5", PathToRoot: "LP1.LP2", CodeText: "Glucose", ImmediateParent: "LP2"},
		{Code: "9999-1", PathToRoot: "LP1", CodeText: "Old thing", ImmediateParent: "LP1"},
	}
	return NewHierarchyIndex(codes, hierarchy)
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(glucoseIndex(), false)

	res, err := r.Resolve("1234-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Level != 5 {
		t.Errorf("expected level 5, got %d", res.Level)
	}
	wantFull := `\i2b2\Laboratory\(LP1) Laboratory\(LP2) Chemistry\(1234-5) Glucose`
	if res.FullName != wantFull {
		t.Errorf("expected full name %q, got %q", wantFull, res.FullName)
	}
	if res.Name != "Glucose:MCnc:Pt:Ser/Plas:Qn:nan" {
		t.Errorf("unexpected name %q", res.Name)
	}
	if res.VisualAttributes != "LA" {
		t.Errorf("expected LA, got %q", res.VisualAttributes)
	}
	if res.ScaleType != "Qn" {
		t.Errorf("expected scale Qn, got %q", res.ScaleType)
	}
	wantXML := "<Loinc><LOINC_NUM>1234-5</LOINC_NUM><COMPONENT>Glucose</COMPONENT><SYSTEM>Ser/Plas</SYSTEM><METHOD_TYP>nan</METHOD_TYP></Loinc>"
	if res.MetadataXML != wantXML {
		t.Errorf("expected metadata %q, got %q", wantXML, res.MetadataXML)
	}
}

func TestResolver_LegacyFullName(t *testing.T) {
	r := NewResolver(glucoseIndex(), true)

	res, err := r.Resolve("1234-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `\i2b2\Laboratory\(LP1) Glucose\(LP2) Glucose\(1234-5) Glucose`
	if res.FullName != want {
		t.Errorf("expected %q, got %q", want, res.FullName)
	}
}

func TestResolver_HierarchyNode(t *testing.T) {
	r := NewResolver(glucoseIndex(), false)

	res, err := r.Resolve("LP1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Level != 3 {
		t.Errorf("expected level 3, got %d", res.Level)
	}
	if res.FullName != `\i2b2\Laboratory\(LP1) Laboratory` {
		t.Errorf("unexpected full name %q", res.FullName)
	}
	if res.Name != "Laboratory" {
		t.Errorf("expected name to be the display text, got %q", res.Name)
	}
	// LP1 parents LP2 and 9999-1.
	if res.VisualAttributes != "MAE" {
		t.Errorf("expected MAE, got %q", res.VisualAttributes)
	}
	wantXML := "<MultiAxialHierarchy><LOINC_NUM>LP1</LOINC_NUM><CODE_TEXT>Laboratory</CODE_TEXT></MultiAxialHierarchy>"
	if res.MetadataXML != wantXML {
		t.Errorf("expected metadata %q, got %q", wantXML, res.MetadataXML)
	}

	res, err = r.Resolve("LP2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VisualAttributes != "FAE" {
		t.Errorf("expected FAE for single child, got %q", res.VisualAttributes)
	}
}

func TestResolver_InactiveLeaf(t *testing.T) {
	r := NewResolver(glucoseIndex(), false)

	res, err := r.Resolve("9999-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VisualAttributes != "LI" {
		t.Errorf("expected LI, got %q", res.VisualAttributes)
	}
}

func TestResolver_MissingPath(t *testing.T) {
	idx := NewHierarchyIndex([]loinc.CodeRecord{{Code: "5555-5", Status: "ACTIVE"}}, nil)
	r := NewResolver(idx, false)

	_, err := r.Resolve("5555-5")
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("expected ErrMissingCode, got %v", err)
	}
	var mce *MissingCodeError
	if !errors.As(err, &mce) {
		t.Fatalf("expected *MissingCodeError, got %T", err)
	}
	if mce.Code != "5555-5" || mce.Index != IndexPath {
		t.Errorf("unexpected error fields %+v", mce)
	}
}

func TestResolver_MissingAncestorText(t *testing.T) {
	idx := NewHierarchyIndex(nil, []loinc.HierarchyRecord{
		{Code: "X", PathToRoot: "GHOST", CodeText: "x", ImmediateParent: "GHOST"},
	})

	_, err := NewResolver(idx, false).Resolve("X")
	var mce *MissingCodeError
	if !errors.As(err, &mce) {
		t.Fatalf("expected *MissingCodeError, got %v", err)
	}
	if mce.Ref != "GHOST" || mce.Index != IndexText {
		t.Errorf("expected text miss on GHOST, got %+v", mce)
	}

	// The legacy rendering never looks ancestors up.
	if _, err := NewResolver(idx, true).Resolve("X"); err != nil {
		t.Errorf("expected legacy resolve to succeed, got %v", err)
	}
}

func TestResolver_Invariants(t *testing.T) {
	idx := glucoseIndex()
	r := NewResolver(idx, false)
	valid := map[string]bool{"LA": true, "LI": true, "FAE": true, "FIE": true, "MAE": true, "MIE": true}

	for _, code := range idx.Codes() {
		res, err := r.Resolve(code)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", code, err)
		}
		path, _ := idx.Path(code)
		ancestors := len(loinc.SplitPath(path))

		if res.Level != ancestors+3 {
			t.Errorf("%s: expected level %d, got %d", code, ancestors+3, res.Level)
		}
		if !strings.HasPrefix(res.FullName, RootPath) {
			t.Errorf("%s: full name %q lacks root prefix", code, res.FullName)
		}
		if n := strings.Count(res.FullName, `\(`); n != ancestors+1 {
			t.Errorf("%s: expected %d segments, got %d", code, ancestors+1, n)
		}
		if !valid[res.VisualAttributes] {
			t.Errorf("%s: invalid visual attributes %q", code, res.VisualAttributes)
		}
	}
}

func TestResolver_MetadataKeepsQuotes(t *testing.T) {
	idx := NewHierarchyIndex(
		[]loinc.CodeRecord{{Code: "7777-7", Component: `Hodgkin's "x" <b> & c`, Status: "ACTIVE"}},
		[]loinc.HierarchyRecord{
			{Code: "LP9", CodeText: `Reed's "cells"`},
			{Code: "7777-7", PathToRoot: "LP9", CodeText: "t", ImmediateParent: "LP9"},
		},
	)
	r := NewResolver(idx, false)

	res, err := r.Resolve("7777-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<Loinc><LOINC_NUM>7777-7</LOINC_NUM><COMPONENT>Hodgkin's "x" &lt;b&gt; &amp; c</COMPONENT><SYSTEM>nan</SYSTEM><METHOD_TYP>nan</METHOD_TYP></Loinc>`
	if res.MetadataXML != want {
		t.Errorf("expected metadata %q, got %q", want, res.MetadataXML)
	}

	res, err = r.Resolve("LP9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = `<MultiAxialHierarchy><LOINC_NUM>LP9</LOINC_NUM><CODE_TEXT>Reed's "cells"</CODE_TEXT></MultiAxialHierarchy>`
	if res.MetadataXML != want {
		t.Errorf("expected metadata %q, got %q", want, res.MetadataXML)
	}
}
