package docx_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"docxredline/internal/docx"
	"docxredline/internal/docx/docxtest"
)

func mustParse(t *testing.T, archive []byte) *docx.Document {
	t.Helper()
	doc, err := docx.Parse(archive)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseParagraphTexts(t *testing.T) {
	body := docxtest.Para(`<w:pPr><w:jc w:val="both"/></w:pPr>`+docxtest.Run("", "Hello ")+docxtest.Run("<w:b/>", "world")) +
		docxtest.Para(docxtest.Run("", "Second paragraph"))
	doc := mustParse(t, docxtest.Build(t, body))

	want := []string{"Hello world", "Second paragraph"}
	if diff := cmp.Diff(want, doc.ParagraphTexts()); diff != "" {
		t.Errorf("paragraph texts mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		archive []byte
		wantErr error
	}{
		{
			name:    "not a zip",
			archive: []byte("certainly not a zip archive"),
			wantErr: docx.ErrCorrupt,
		},
		{
			name: "missing document part",
			archive: docxtest.BuildParts(t, map[string]string{
				"[Content_Types].xml": docxtest.ContentTypes,
				"_rels/.rels":         docxtest.Rels,
			}),
			wantErr: docx.ErrUnsupportedFormat,
		},
		{
			name: "malformed document xml",
			archive: docxtest.BuildParts(t, map[string]string{
				"[Content_Types].xml": docxtest.ContentTypes,
				"_rels/.rels":         docxtest.Rels,
				"word/document.xml":   `<w:document xmlns:w="x"><w:body><w:p>`,
			}),
			wantErr: docx.ErrCorrupt,
		},
		{
			name: "wrong root element",
			archive: docxtest.BuildParts(t, map[string]string{
				"[Content_Types].xml": docxtest.ContentTypes,
				"_rels/.rels":         docxtest.Rels,
				"word/document.xml":   `<html><body>nope</body></html>`,
			}),
			wantErr: docx.ErrUnsupportedFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := docx.Parse(tt.archive)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRoundTripUnmodified(t *testing.T) {
	body := docxtest.Para(`<w:pPr><w:spacing w:after="200"/></w:pPr>` + docxtest.Run("<w:b/><w:i/>", "Styled text")) +
		`<w:bookmarkStart w:id="3" w:name="mark"/>` +
		docxtest.Para(docxtest.Run("", "Plain text")+`<w:r><w:br/></w:r>`+docxtest.Run("", "after a break")) +
		`<w:tbl><w:tblPr/><w:tr><w:tc>` + docxtest.Para(docxtest.Run("", "Cell text")) + `</w:tc></w:tr></w:tbl>` +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`
	input := docxtest.Build(t, body)

	doc := mustParse(t, input)
	output, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	for _, part := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		in := docxtest.ReadPart(t, input, part)
		out := docxtest.ReadPart(t, output, part)
		if in != out {
			t.Errorf("part %s changed on a zero-edit round trip:\n in: %s\nout: %s", part, in, out)
		}
	}

	reparsed := mustParse(t, output)
	if diff := cmp.Diff(doc.ParagraphTexts(), reparsed.ParagraphTexts()); diff != "" {
		t.Errorf("reparsed texts mismatch (-orig +reparsed):\n%s", diff)
	}
}

func TestTableCellParagraphsAreModeled(t *testing.T) {
	body := docxtest.Para(docxtest.Run("", "Before table")) +
		`<w:tbl><w:tblPr/><w:tr><w:tc><w:tcPr/>` + docxtest.Para(docxtest.Run("", "Inside a cell")) + `</w:tc></w:tr></w:tbl>`
	doc := mustParse(t, docxtest.Build(t, body))

	want := []string{"Before table", "Inside a cell"}
	if diff := cmp.Diff(want, doc.ParagraphTexts()); diff != "" {
		t.Errorf("paragraph texts mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitRunPreservesFormatting(t *testing.T) {
	doc := mustParse(t, docxtest.Build(t, docxtest.Para(docxtest.Run("<w:b/><w:i/>", "Hello world"))))
	p := doc.Paragraphs()[0]
	left := p.Runs()[0]

	right, err := p.SplitRun(left, 5)
	if err != nil {
		t.Fatalf("SplitRun: %v", err)
	}

	if left.Text() != "Hello" || right.Text() != " world" {
		t.Errorf("split texts = %q, %q", left.Text(), right.Text())
	}
	if !strings.Contains(string(left.Props()), "<w:b/>") {
		t.Errorf("left props lost formatting: %s", left.Props())
	}
	if diff := cmp.Diff(string(left.Props()), string(right.Props())); diff != "" {
		t.Errorf("halves have different formatting (-left +right):\n%s", diff)
	}
	if got := p.Text(); got != "Hello world" {
		t.Errorf("paragraph text after split = %q", got)
	}
}

func TestSplitRunRejectsBoundaryOffsets(t *testing.T) {
	doc := mustParse(t, docxtest.Build(t, docxtest.Para(docxtest.Run("", "abc"))))
	p := doc.Paragraphs()[0]
	r := p.Runs()[0]

	for _, off := range []int{-1, 0, 3, 4} {
		if _, err := p.SplitRun(r, off); err == nil {
			t.Errorf("SplitRun(%d) succeeded, want error", off)
		}
	}
}

func TestTrackedChangeSerialization(t *testing.T) {
	input := docxtest.Build(t, docxtest.Para(docxtest.Run("<w:b/>", "delete me")+docxtest.Run("", " keep me")))
	doc := mustParse(t, input)
	p := doc.Paragraphs()[0]
	target := p.Runs()[0]

	date := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	del := &docx.Revision{Kind: docx.RevisionDeleted, Author: "Reviewer", Date: date, ID: 1}
	ins := &docx.Revision{Kind: docx.RevisionInserted, Author: "Reviewer", Date: date, ID: 2}

	if _, err := p.MarkDeleted(target, del); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if _, err := p.InsertRunAfter(target, "replacement", target, ins); err != nil {
		t.Fatalf("InsertRunAfter: %v", err)
	}

	if got := p.Text(); got != "replacement keep me" {
		t.Errorf("paragraph text = %q", got)
	}

	output, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	xmlOut := docxtest.ReadPart(t, output, "word/document.xml")

	for _, want := range []string{
		`<w:del w:id="1" w:author="Reviewer" w:date="2026-03-01T12:00:00Z">`,
		`<w:delText xml:space="preserve">delete me</w:delText>`,
		`<w:ins w:id="2" w:author="Reviewer" w:date="2026-03-01T12:00:00Z">`,
		`<w:t xml:space="preserve">replacement</w:t>`,
	} {
		if !strings.Contains(xmlOut, want) {
			t.Errorf("output missing %s\nin: %s", want, xmlOut)
		}
	}

	// The deleted run keeps its formatting inside the marker.
	if !strings.Contains(xmlOut, `<w:rPr><w:b/></w:rPr><w:delText`) {
		t.Errorf("deleted run lost formatting: %s", xmlOut)
	}

	reparsed := mustParse(t, output)
	rp := reparsed.Paragraphs()[0]
	if got := rp.Text(); got != "replacement keep me" {
		t.Errorf("reparsed text = %q", got)
	}
	if !rp.Runs()[0].Inserted() {
		t.Errorf("reparsed replacement run not marked inserted")
	}
}

func TestParseExistingRevisions(t *testing.T) {
	body := docxtest.Para(
		docxtest.Run("", "Base ") +
			`<w:ins w:id="7" w:author="Earlier" w:date="2025-06-01T00:00:00Z">` + docxtest.Run("", "added ") + `</w:ins>` +
			`<w:del w:id="8" w:author="Earlier" w:date="2025-06-01T00:00:00Z"><w:r><w:delText xml:space="preserve">gone </w:delText></w:r></w:del>` +
			docxtest.Run("", "tail"))
	doc := mustParse(t, docxtest.Build(t, body))

	if got := doc.Paragraphs()[0].Text(); got != "Base added tail" {
		t.Errorf("text with existing revisions = %q", got)
	}
	if got := doc.MaxRevisionID(); got != 8 {
		t.Errorf("MaxRevisionID = %d, want 8", got)
	}
}

func TestReplaceRefusesUnownedParts(t *testing.T) {
	pkg, err := docx.OpenPackage(docxtest.Build(t, docxtest.Para(docxtest.Run("", "x"))))
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if err := pkg.Replace("_rels/.rels", []byte("<overwritten/>")); !errors.Is(err, docx.ErrUnwritable) {
		t.Errorf("Replace unowned part error = %v, want %v", err, docx.ErrUnwritable)
	}
}
