// Package redline locates proposed edits inside a parsed document and
// rewrites the matched spans as tracked changes.
package redline

import (
	"sort"
	"strings"

	"docxredline/internal/docx"
)

// TextIndex is a flattened, position-addressable view of one paragraph's
// text. No normalization happens here; the flat string is exactly the
// concatenation of run texts so offsets map back losslessly.
type TextIndex struct {
	para *docx.Paragraph
	runs []*docx.Run
	offs []int // offs[i] = flat byte offset where runs[i] starts; offs[len(runs)] = total length
	flat string
}

// BuildIndex flattens a paragraph's matchable runs.
func BuildIndex(p *docx.Paragraph) *TextIndex {
	runs := p.Runs()
	offs := make([]int, len(runs)+1)
	var b strings.Builder
	for i, r := range runs {
		offs[i] = b.Len()
		b.WriteString(r.Text())
	}
	offs[len(runs)] = b.Len()
	return &TextIndex{para: p, runs: runs, offs: offs, flat: b.String()}
}

// Flatten returns the paragraph's raw flattened text.
func (ix *TextIndex) Flatten() string { return ix.flat }

// Len returns the flattened text length in bytes.
func (ix *TextIndex) Len() int { return len(ix.flat) }

// Paragraph returns the paragraph the index was built from.
func (ix *TextIndex) Paragraph() *docx.Paragraph { return ix.para }

// Run returns the i-th matchable run.
func (ix *TextIndex) Run(i int) *docx.Run { return ix.runs[i] }

// RunFor maps a byte offset in the flattened text to the run containing it
// and the offset within that run. The offset must satisfy 0 <= off < Len().
func (ix *TextIndex) RunFor(off int) (int, int) {
	// First run whose end is past off.
	i := sort.Search(len(ix.runs), func(i int) bool { return ix.offs[i+1] > off })
	return i, off - ix.offs[i]
}

// RunStart returns the flat offset where the i-th run begins.
func (ix *TextIndex) RunStart(i int) int { return ix.offs[i] }
