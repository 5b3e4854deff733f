package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Bytes regenerates the document part from the current model and writes the
// whole archive back out. Paragraphs that were never mutated are emitted
// from their original byte slices, so a zero-edit round trip reproduces
// word/document.xml byte for byte.
func (d *Document) Bytes() ([]byte, error) {
	if err := d.pkg.Replace(DocumentPart, d.renderDocumentXML()); err != nil {
		return nil, err
	}
	return d.pkg.Bytes()
}

func (d *Document) renderDocumentXML() []byte {
	var buf bytes.Buffer
	buf.Write(d.prefix)
	for _, ch := range d.chunks {
		if ch.para != nil {
			renderParagraph(&buf, ch.para, d.w)
			continue
		}
		buf.Write(ch.raw)
	}
	buf.Write(d.suffix)
	return buf.Bytes()
}

func renderParagraph(buf *bytes.Buffer, p *Paragraph, w string) {
	if p.raw != nil {
		buf.Write(p.raw)
		return
	}
	buf.Write(p.open)
	i := 0
	for i < len(p.blocks) {
		b := p.blocks[i]
		if b.run == nil {
			buf.Write(b.raw)
			i++
			continue
		}
		if b.run.rev == nil {
			renderPlainRun(buf, b.run, w)
			i++
			continue
		}
		// Group adjacent runs sharing one revision record under a single
		// marker so one logical edit yields one w:ins/w:del element.
		rev := b.run.rev
		j := i
		for j < len(p.blocks) && p.blocks[j].run != nil && p.blocks[j].run.rev == rev {
			j++
		}
		renderRevision(buf, p.blocks[i:j], rev, w)
		i = j
	}
	buf.Write(p.close)
}

func renderPlainRun(buf *bytes.Buffer, r *Run, w string) {
	if r.raw != nil {
		buf.Write(r.raw)
		return
	}
	openRun(buf, r, w)
	writeTextElement(buf, tagName(w, "t"), r.text)
	fmt.Fprintf(buf, "</%s>", tagName(w, "r"))
}

func renderRevision(buf *bytes.Buffer, blocks []block, rev *Revision, w string) {
	marker := "ins"
	textTag := tagName(w, "t")
	if rev.Kind == RevisionDeleted {
		marker = "del"
		textTag = tagName(w, "delText")
	}

	fmt.Fprintf(buf, `<%s %s="%d" %s="`, tagName(w, marker), tagName(w, "id"), rev.ID, tagName(w, "author"))
	xml.EscapeText(buf, []byte(rev.Author))
	fmt.Fprintf(buf, `" %s="%s">`, tagName(w, "date"), rev.Date.UTC().Format("2006-01-02T15:04:05Z"))

	for _, b := range blocks {
		openRun(buf, b.run, w)
		writeTextElement(buf, textTag, b.run.text)
		fmt.Fprintf(buf, "</%s>", tagName(w, "r"))
	}

	fmt.Fprintf(buf, "</%s>", tagName(w, marker))
}

// openRun writes the run start tag and formatting. Runs parsed from the
// source keep their original start tag so run-level attributes survive.
func openRun(buf *bytes.Buffer, r *Run, w string) {
	if r.open != nil {
		buf.Write(r.open)
	} else {
		fmt.Fprintf(buf, "<%s>", tagName(w, "r"))
	}
	if r.props != nil {
		buf.Write(r.props)
	}
}

// writeTextElement writes a text-bearing element with xml:space preserved,
// so leading and trailing spaces survive consumers that trim by default.
func writeTextElement(buf *bytes.Buffer, tag, text string) {
	fmt.Fprintf(buf, `<%s xml:space="preserve">`, tag)
	xml.EscapeText(buf, []byte(text))
	fmt.Fprintf(buf, "</%s>", tag)
}

func tagName(w, local string) string {
	if w == "" {
		return local
	}
	return w + ":" + local
}
