package redline_test

import (
	"testing"

	"docxredline/internal/docx"
	"docxredline/internal/docx/docxtest"
	"docxredline/internal/redline"
	"docxredline/pkg/redlineapi"
)

func indexes(t *testing.T, paras ...string) []*redline.TextIndex {
	t.Helper()
	var body string
	for _, p := range paras {
		body += docxtest.Para(docxtest.Run("", p))
	}
	doc, err := docx.Parse(docxtest.Build(t, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ixs := make([]*redline.TextIndex, 0, len(doc.Paragraphs()))
	for _, p := range doc.Paragraphs() {
		ixs = append(ixs, redline.BuildIndex(p))
	}
	return ixs
}

func TestFindExact(t *testing.T) {
	ixs := indexes(t,
		"This Agreement is made today.",
		"The Seller shall deliver the goods within 30 days.")
	var l redline.Locator

	m, ok := l.Find(ixs, "within 30 days")
	if !ok {
		t.Fatalf("Find returned not found")
	}
	if m.Paragraph != 1 || m.Start != 35 || m.End != 49 {
		t.Errorf("match = para %d [%d,%d), want para 1 [35,49)", m.Paragraph, m.Start, m.End)
	}
	if m.Confidence != redlineapi.MatchExact {
		t.Errorf("Confidence = %q, want %q", m.Confidence, redlineapi.MatchExact)
	}
	if m.Ambiguous {
		t.Errorf("single occurrence reported ambiguous")
	}
}

func TestFindExactAmbiguous(t *testing.T) {
	ixs := indexes(t, "The Company shall notify the Company in writing.")
	var l redline.Locator

	m, ok := l.Find(ixs, "Company")
	if !ok {
		t.Fatalf("Find returned not found")
	}
	if m.Start != 4 {
		t.Errorf("Start = %d, want the first occurrence at 4", m.Start)
	}
	if !m.Ambiguous {
		t.Errorf("repeated occurrence not reported ambiguous")
	}
}

func TestFindNormalized(t *testing.T) {
	// Double spaces in the document, single in the proposal.
	ixs := indexes(t, "Hello  world  again")
	var l redline.Locator

	m, ok := l.Find(ixs, "Hello world")
	if !ok {
		t.Fatalf("Find returned not found")
	}
	if m.Confidence != redlineapi.MatchNormalized {
		t.Errorf("Confidence = %q, want %q", m.Confidence, redlineapi.MatchNormalized)
	}
	// The raw span covers both spaces so the replacement removes them.
	if m.Start != 0 || m.End != len("Hello  world") {
		t.Errorf("span = [%d,%d), want [0,%d)", m.Start, m.End, len("Hello  world"))
	}
}

func TestFindNormalizedTrimsNeedle(t *testing.T) {
	ixs := indexes(t, "The goods shall conform.")
	var l redline.Locator

	m, ok := l.Find(ixs, "  goods shall ")
	if !ok {
		t.Fatalf("Find returned not found")
	}
	if got := ixs[0].Flatten()[m.Start:m.End]; got != "goods shall" {
		t.Errorf("raw span = %q, want %q", got, "goods shall")
	}
}

func TestFindEmptyNeedle(t *testing.T) {
	ixs := indexes(t, "Anything at all.")
	var l redline.Locator

	if _, ok := l.Find(ixs, ""); ok {
		t.Errorf("empty needle reported found")
	}
	if _, ok := l.Find(ixs, "   "); ok {
		t.Errorf("whitespace-only needle reported found")
	}
}

func TestFindFuzzy(t *testing.T) {
	// "liabilty" is misspelled in the document.
	ixs := indexes(t, "The liabilty cap applies to all claims.")
	l := redline.Locator{Fuzzy: true, Threshold: 0.80, Margin: 0.05}

	m, ok := l.Find(ixs, "liability cap")
	if !ok {
		t.Fatalf("Find returned not found (ambiguous=%v)", m.Ambiguous)
	}
	if m.Confidence != redlineapi.MatchFuzzy {
		t.Errorf("Confidence = %q, want %q", m.Confidence, redlineapi.MatchFuzzy)
	}
	got := ixs[0].Flatten()[m.Start:m.End]
	if got != "liabilty cap " && got != " liabilty cap" && got != "liabilty cap a" {
		t.Errorf("fuzzy span = %q, want a window over the misspelled phrase", got)
	}
}

func TestFindFuzzyBelowThreshold(t *testing.T) {
	ixs := indexes(t, "The quick brown fox jumps over the lazy dog.")
	l := redline.Locator{Fuzzy: true, Threshold: 0.80, Margin: 0.05}

	m, ok := l.Find(ixs, "termination for convenience")
	if ok {
		t.Fatalf("unrelated needle reported found: %+v", m)
	}
	if m.Ambiguous {
		t.Errorf("below-threshold miss reported ambiguous")
	}
}

func TestFindFuzzyAmbiguous(t *testing.T) {
	// The same near-miss phrase in two paragraphs scores identically, so no
	// single window clears the margin.
	ixs := indexes(t,
		"The color scheme is blue.",
		"The color scheme is green.")
	l := redline.Locator{Fuzzy: true, Threshold: 0.80, Margin: 0.05}

	m, ok := l.Find(ixs, "colour scheme")
	if ok {
		t.Fatalf("ambiguous fuzzy match reported found: %+v", m)
	}
	if !m.Ambiguous {
		t.Errorf("tied fuzzy windows not reported ambiguous")
	}
	if m.Confidence != redlineapi.MatchFuzzy {
		t.Errorf("Confidence = %q, want %q", m.Confidence, redlineapi.MatchFuzzy)
	}
}

func TestFindFuzzyDisabled(t *testing.T) {
	ixs := indexes(t, "The liabilty cap applies.")
	var l redline.Locator // fuzzy off

	if _, ok := l.Find(ixs, "liability cap"); ok {
		t.Errorf("fuzzy-only match found with fuzzy matching disabled")
	}
}
