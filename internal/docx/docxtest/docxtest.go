// Package docxtest builds minimal in-memory docx files for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"testing"
)

// ContentTypes and Rels are the two mandatory parts beside the document.
const (
	ContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

	Rels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`
)

// WrapBody wraps body content in the document scaffolding.
func WrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`
}

// Para wraps runs in a plain paragraph.
func Para(runs string) string {
	return "<w:p>" + runs + "</w:p>"
}

// Run builds a run with optional property markup.
func Run(props, text string) string {
	r := "<w:r>"
	if props != "" {
		r += "<w:rPr>" + props + "</w:rPr>"
	}
	return r + `<w:t xml:space="preserve">` + text + "</w:t></w:r>"
}

// Build assembles a docx archive whose body is the given content.
func Build(t testing.TB, body string) []byte {
	t.Helper()
	return BuildParts(t, map[string]string{
		"[Content_Types].xml": ContentTypes,
		"_rels/.rels":         Rels,
		"word/document.xml":   WrapBody(body),
	})
}

// BuildParts assembles a zip archive from explicit parts. The three standard
// part names are written first, in stable order, then the rest.
func BuildParts(t testing.TB, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	order := []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"}
	written := make(map[string]bool)
	for _, name := range order {
		if data, ok := parts[name]; ok {
			writeEntry(t, zw, name, data)
			written[name] = true
		}
	}
	for name, data := range parts {
		if !written[name] {
			writeEntry(t, zw, name, data)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("closing test archive: %v", err)
	}
	return buf.Bytes()
}

func writeEntry(t testing.TB, zw *zip.Writer, name, data string) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// ReadPart extracts one part from a docx archive.
func ReadPart(t testing.TB, archive []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		return buf.String()
	}
	t.Fatalf("part %s not found in archive", name)
	return ""
}
