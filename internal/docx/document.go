package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
)

// wordNS is the main WordprocessingML namespace. The prefix bound to it
// (almost always "w") is detected from the document root so attribute and
// element names round-trip with whatever prefix the producer used.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// RevisionKind distinguishes tracked insertions from tracked deletions.
type RevisionKind int

const (
	RevisionNone RevisionKind = iota
	RevisionInserted
	RevisionDeleted
)

// Revision records the tracked-change metadata for one logical edit. Runs
// produced by the same edit share one Revision, and the serializer groups
// adjacent runs sharing a Revision under one marker element.
type Revision struct {
	Kind   RevisionKind
	Author string
	Date   time.Time
	ID     int
}

// Run is the smallest span of text sharing one formatting set. Formatting is
// carried as the opaque byte slice of the original <w:rPr> element so
// properties the engine does not understand survive unchanged.
type Run struct {
	open  []byte // original start tag, nil for runs created by the engine
	props []byte // raw <w:rPr> slice, nil when the run has none
	text  string
	rev   *Revision
	raw   []byte // original bytes of the whole run, invalidated on mutation
	added bool   // created by a mutation rather than parsed from the source
}

// Text returns the run's text content.
func (r *Run) Text() string { return r.text }

// Revision returns the run's tracked-change record, nil for ordinary text.
func (r *Run) Revision() *Revision { return r.rev }

// Deleted reports whether the run is inside a tracked deletion.
func (r *Run) Deleted() bool { return r.rev != nil && r.rev.Kind == RevisionDeleted }

// Inserted reports whether the run is a tracked insertion pending from this
// session.
func (r *Run) Inserted() bool { return r.rev != nil && r.rev.Kind == RevisionInserted }

// Props returns the raw formatting slice. Exposed for tests; the engine
// itself only ever copies it verbatim.
func (r *Run) Props() []byte { return r.props }

// Added reports whether the run was created by a mutation in this session
// rather than parsed from the source.
func (r *Run) Added() bool { return r.added }

// block is one ordered child of a paragraph: either an editable run or an
// opaque byte range (pPr, bookmarks, hyperlinks, existing revisions, runs
// with non-text content...).
type block struct {
	run *Run
	raw []byte
}

// Paragraph is an ordered run arena. Splits and insertions are index
// insertions into the block sequence; nothing holds pointers across blocks.
type Paragraph struct {
	open   []byte // original <w:p ...> start tag
	close  []byte // original </w:p> end tag
	blocks []block
	raw    []byte // full original slice, reused verbatim until first mutation
}

// Runs returns the paragraph's matchable text runs in document order. Runs
// marked deleted are excluded: their text is logically gone and must not be
// matched or merged with live runs.
func (p *Paragraph) Runs() []*Run {
	var runs []*Run
	for _, b := range p.blocks {
		if b.run != nil && !b.run.Deleted() {
			runs = append(runs, b.run)
		}
	}
	return runs
}

// Text returns the paragraph's logical text: the concatenation of its
// matchable run texts in order.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs() {
		b.WriteString(r.text)
	}
	return b.String()
}

func (p *Paragraph) markDirty() { p.raw = nil }

func (p *Paragraph) blockIndex(r *Run) int {
	for i, b := range p.blocks {
		if b.run == r {
			return i
		}
	}
	return -1
}

// SplitRun truncates r at byte offset off and inserts the remainder as a new
// run immediately after it. Both halves keep the original formatting slice
// and revision record. The right half is returned.
func (p *Paragraph) SplitRun(r *Run, off int) (*Run, error) {
	i := p.blockIndex(r)
	if i < 0 {
		return nil, fmt.Errorf("split: run not in paragraph")
	}
	if off <= 0 || off >= len(r.text) {
		return nil, fmt.Errorf("split: offset %d out of range (run length %d)", off, len(r.text))
	}

	right := &Run{open: r.open, props: r.props, text: r.text[off:], rev: r.rev, added: r.added}
	r.text = r.text[:off]
	r.raw = nil
	p.blocks = slices.Insert(p.blocks, i+1, block{run: right})
	p.markDirty()
	return right, nil
}

// MarkDeleted wraps r in a tracked deletion. If r is an insertion added in
// this session by the same author the net change is nothing, so the run is
// removed outright instead of nesting revisions. An insertion parsed from
// the source, or one by another author, is refused: a run carries one
// revision record, so rewriting it would erase an existing change record.
// Reports whether the run survived as a tracked deletion.
func (p *Paragraph) MarkDeleted(r *Run, rev *Revision) (bool, error) {
	i := p.blockIndex(r)
	if i < 0 {
		return false, fmt.Errorf("delete: run not in paragraph")
	}
	if r.Deleted() {
		return false, fmt.Errorf("delete: run already deleted")
	}
	if r.Inserted() {
		if !r.added || r.rev.Author != rev.Author {
			return false, fmt.Errorf("delete: run is a pending insertion by %q", r.rev.Author)
		}
		p.blocks = slices.Delete(p.blocks, i, i+1)
		p.markDirty()
		return false, nil
	}
	r.rev = rev
	r.raw = nil
	p.markDirty()
	return true, nil
}

// InsertRunAfter inserts a new run carrying text immediately after the given
// run, with formatting copied from propsFrom.
func (p *Paragraph) InsertRunAfter(after *Run, text string, propsFrom *Run, rev *Revision) (*Run, error) {
	i := p.blockIndex(after)
	if i < 0 {
		return nil, fmt.Errorf("insert: run not in paragraph")
	}
	nr := &Run{text: text, rev: rev, added: true}
	if propsFrom != nil {
		nr.props = propsFrom.props
	}
	p.blocks = slices.Insert(p.blocks, i+1, block{run: nr})
	p.markDirty()
	return nr, nil
}

// docChunk is one ordered piece of the body: a paragraph or opaque bytes.
type docChunk struct {
	para *Paragraph
	raw  []byte
}

// Document is the in-memory model of one docx file. Only body paragraph
// content is modeled; everything else is byte ranges carried through.
type Document struct {
	pkg    *Package
	src    []byte // original word/document.xml
	prefix []byte // up to and including the <w:body> start tag
	suffix []byte // from </w:body> to EOF
	chunks []docChunk
	paras  []*Paragraph
	w      string // namespace prefix bound to wordNS
	maxID  int    // largest revision id present in the source
}

// Paragraphs returns the document's paragraphs in document order, table
// cell paragraphs included.
func (d *Document) Paragraphs() []*Paragraph { return d.paras }

// ParagraphTexts returns the logical text of every paragraph, in order.
func (d *Document) ParagraphTexts() []string {
	texts := make([]string, len(d.paras))
	for i, p := range d.paras {
		texts[i] = p.Text()
	}
	return texts
}

// MaxRevisionID returns the largest w:id value present in the source
// document, 0 when there is none. ID allocation starts above it so documents
// arriving with prior tracked changes never get colliding ids.
func (d *Document) MaxRevisionID() int { return d.maxID }

// Parse builds a Document from docx bytes.
func Parse(input []byte) (*Document, error) {
	pkg, err := OpenPackage(input)
	if err != nil {
		return nil, err
	}
	src, err := pkg.Part(DocumentPart)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocumentXML(src)
	if err != nil {
		return nil, err
	}
	doc.pkg = pkg
	return doc, nil
}

// cursor walks raw XML tokens while tracking the byte range of the last
// token, so opaque regions can be sliced out of the source verbatim.
type cursor struct {
	dec      *xml.Decoder
	src      []byte
	tokStart int64
}

func (c *cursor) next() (xml.Token, error) {
	c.tokStart = c.dec.InputOffset()
	return c.dec.RawToken()
}

func (c *cursor) end() int64 { return c.dec.InputOffset() }

// skipElement consumes tokens until the end of the element whose start tag
// was just read.
func (c *cursor) skipElement() error {
	depth := 0
	for {
		tok, err := c.next()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func corruptErr(err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, DocumentPart, err)
}

func parseDocumentXML(src []byte) (*Document, error) {
	c := &cursor{dec: xml.NewDecoder(bytes.NewReader(src)), src: src}
	d := &Document{src: src, w: "w"}

	// Locate the body. The root element tells us which prefix is bound to
	// the WordprocessingML namespace.
	sawRoot := false
	for {
		tok, err := c.next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s has no body element", ErrUnsupportedFormat, DocumentPart)
		}
		if err != nil {
			return nil, corruptErr(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if se.Name.Local != "document" {
				return nil, fmt.Errorf("%w: %s root element is %q", ErrUnsupportedFormat, DocumentPart, se.Name.Local)
			}
			if pfx, ok := wordPrefix(se); ok {
				d.w = pfx
			}
			continue
		}
		if se.Name.Space == d.w && se.Name.Local == "body" {
			break
		}
		// Some producers put extension elements before the body.
		if err := c.skipElement(); err != nil {
			return nil, corruptErr(err)
		}
	}

	d.prefix = src[:c.end()]
	if err := parseBody(c, d); err != nil {
		return nil, err
	}
	d.maxID = maxRevisionID(src, d.w)
	return d, nil
}

// wordPrefix finds the prefix bound to the WordprocessingML namespace in the
// root element's xmlns attributes.
func wordPrefix(se xml.StartElement) (string, bool) {
	for _, a := range se.Attr {
		if a.Value != wordNS {
			continue
		}
		if a.Name.Space == "xmlns" {
			return a.Name.Local, true
		}
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return "", true
		}
	}
	return "", false
}

// parseBody scans the body as a flat chunk stream. A w:p at any depth
// becomes a Paragraph, so table cell text is editable while the table
// plumbing around it stays opaque.
func parseBody(c *cursor, d *Document) error {
	rawStart := c.end()
	depth := 0
	for {
		tok, err := c.next()
		if err != nil {
			return corruptErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == d.w && t.Name.Local == "p" {
				pStart := c.tokStart
				if pStart > rawStart {
					d.chunks = append(d.chunks, docChunk{raw: d.src[rawStart:pStart]})
				}
				para, err := parseParagraph(c, d.w, pStart)
				if err != nil {
					return err
				}
				d.chunks = append(d.chunks, docChunk{para: para})
				d.paras = append(d.paras, para)
				rawStart = c.end()
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				// End of body. Everything from here to EOF is suffix.
				if c.tokStart > rawStart {
					d.chunks = append(d.chunks, docChunk{raw: d.src[rawStart:c.tokStart]})
				}
				d.suffix = d.src[c.tokStart:]
				return nil
			}
			depth--
		}
	}
}

// parseParagraph reads one w:p whose start tag was just consumed. Children
// other than plain text runs are kept as opaque chunks in place.
func parseParagraph(c *cursor, w string, startOff int64) (*Paragraph, error) {
	p := &Paragraph{open: c.src[startOff:c.end()]}
	rawStart := c.end()
	for {
		tok, err := c.next()
		if err != nil {
			return nil, corruptErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == w && t.Name.Local == "r" {
				runStart := c.tokStart
				run, err := parseRun(c, w, runStart, "t")
				if err != nil {
					return nil, err
				}
				if run == nil {
					// Non-text run; leave its bytes in the pending raw region.
					continue
				}
				if runStart > rawStart {
					p.blocks = append(p.blocks, block{raw: c.src[rawStart:runStart]})
				}
				p.blocks = append(p.blocks, block{run: run})
				rawStart = c.end()
				continue
			}
			if t.Name.Space == w && (t.Name.Local == "ins" || t.Name.Local == "del") {
				groupStart := c.tokStart
				runs, ok, err := parseRevisionGroup(c, w, t)
				if err != nil {
					return nil, err
				}
				if !ok || len(runs) == 0 {
					// Group we cannot model faithfully; keep it opaque.
					continue
				}
				if groupStart > rawStart {
					p.blocks = append(p.blocks, block{raw: c.src[rawStart:groupStart]})
				}
				for _, r := range runs {
					p.blocks = append(p.blocks, block{run: r})
				}
				rawStart = c.end()
				continue
			}
			// pPr, hyperlinks, bookmarks, field codes... all opaque.
			if err := c.skipElement(); err != nil {
				return nil, corruptErr(err)
			}
		case xml.EndElement:
			if c.tokStart > rawStart {
				p.blocks = append(p.blocks, block{raw: c.src[rawStart:c.tokStart]})
			}
			p.close = c.src[c.tokStart:c.end()]
			p.raw = c.src[startOff:c.end()]
			return p, nil
		}
	}
}

// parseRevisionGroup reads one w:ins or w:del whose start tag was just
// consumed and models its runs with the revision metadata attached. Groups
// with missing metadata or non-text content are reported as not-ok so the
// caller preserves their bytes opaquely instead.
func parseRevisionGroup(c *cursor, w string, se xml.StartElement) ([]*Run, bool, error) {
	kind := RevisionInserted
	textLocal := "t"
	if se.Name.Local == "del" {
		kind = RevisionDeleted
		textLocal = "delText"
	}

	rev := &Revision{Kind: kind}
	var haveID, haveDate bool
	for _, a := range se.Attr {
		if a.Name.Space != w {
			continue
		}
		switch a.Name.Local {
		case "id":
			if id, err := strconv.Atoi(a.Value); err == nil {
				rev.ID = id
				haveID = true
			}
		case "author":
			rev.Author = a.Value
		case "date":
			if d, err := time.Parse(time.RFC3339, a.Value); err == nil {
				rev.Date = d
				haveDate = true
			}
		}
	}
	ok := haveID && haveDate

	var runs []*Run
	for {
		tok, err := c.next()
		if err != nil {
			return nil, false, corruptErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if ok && t.Name.Space == w && t.Name.Local == "r" {
				run, err := parseRun(c, w, c.tokStart, textLocal)
				if err != nil {
					return nil, false, err
				}
				if run == nil {
					ok = false
				} else {
					run.rev = rev
					runs = append(runs, run)
				}
				continue
			}
			ok = false
			if err := c.skipElement(); err != nil {
				return nil, false, corruptErr(err)
			}
		case xml.EndElement:
			return runs, ok, nil
		}
	}
}

// parseRun reads one w:r whose start tag was just consumed; textLocal is the
// element carrying its text, w:t normally and w:delText inside a deletion.
// Runs containing anything beyond rPr and text (tabs, breaks, drawings,
// field codes) are not editable and are reported as nil so the caller keeps
// their bytes opaque.
func parseRun(c *cursor, w string, startOff int64, textLocal string) (*Run, error) {
	run := &Run{open: c.src[startOff:c.end()]}
	var text strings.Builder
	editable := true
	for {
		tok, err := c.next()
		if err != nil {
			return nil, corruptErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == w && t.Name.Local == "rPr":
				s := c.tokStart
				if err := c.skipElement(); err != nil {
					return nil, corruptErr(err)
				}
				run.props = c.src[s:c.end()]
			case t.Name.Space == w && t.Name.Local == textLocal:
				chunk, err := readText(c)
				if err != nil {
					return nil, err
				}
				text.WriteString(chunk)
			default:
				editable = false
				if err := c.skipElement(); err != nil {
					return nil, corruptErr(err)
				}
			}
		case xml.EndElement:
			if !editable || text.Len() == 0 {
				return nil, nil
			}
			run.text = text.String()
			run.raw = c.src[startOff:c.end()]
			return run, nil
		}
	}
}

// readText collects the character data of a w:t element.
func readText(c *cursor) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := c.next()
		if err != nil {
			return "", corruptErr(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				b.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

// maxRevisionID scans the source for w:id attributes on any element and
// returns the largest numeric value found.
func maxRevisionID(src []byte, w string) int {
	dec := xml.NewDecoder(bytes.NewReader(src))
	maxID := 0
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return maxID
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space != w || a.Name.Local != "id" {
				continue
			}
			if id, err := strconv.Atoi(a.Value); err == nil && id > maxID {
				maxID = id
			}
		}
	}
}
