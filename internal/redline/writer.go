package redline

import (
	"errors"
	"fmt"
	"time"

	"docxredline/internal/docx"
	"docxredline/pkg/redlineapi"
)

// ErrInvalidSpan means a located span could not be resolved to whole runs.
// The document is left untouched by the failing proposal.
var ErrInvalidSpan = errors.New("invalid span")

// IDAllocator hands out revision ids, strictly increasing and unique within
// one document. Each processed document gets its own allocator; sharing one
// across documents would leak ids between concurrent requests.
type IDAllocator struct {
	next int
}

// NewIDAllocator returns an allocator starting at start (minimum 1).
func NewIDAllocator(start int) *IDAllocator {
	if start < 1 {
		start = 1
	}
	return &IDAllocator{next: start}
}

// Next returns the next id.
func (a *IDAllocator) Next() int {
	id := a.next
	a.next++
	return id
}

// Writer rewrites located spans as tracked changes.
type Writer struct {
	Author string
	Clock  func() time.Time // nil means time.Now
}

func (w *Writer) now() time.Time {
	if w.Clock != nil {
		return w.Clock()
	}
	return time.Now()
}

// Apply resolves the matched span to whole runs, marks them as a tracked
// deletion and inserts the replacement as a tracked insertion after them.
// One deletion id and (unless the replacement is empty) one insertion id are
// allocated per proposal regardless of how many runs the span covers.
func (w *Writer) Apply(ix *TextIndex, m MatchResult, proposal redlineapi.EditProposal, ids *IDAllocator) error {
	if m.Start < 0 || m.End > ix.Len() || m.Start >= m.End {
		return fmt.Errorf("%w: span [%d,%d) outside text of length %d", ErrInvalidSpan, m.Start, m.End, ix.Len())
	}

	p := ix.Paragraph()

	firstIdx, _ := ix.RunFor(m.Start)
	lastIdx, _ := ix.RunFor(m.End - 1)

	// Refusal conditions are checked before the first split or insertion;
	// a failing proposal must leave the document untouched.
	for i := firstIdx; i <= lastIdx; i++ {
		if r := ix.Run(i); r.Inserted() && (!r.Added() || r.Revision().Author != w.Author) {
			return fmt.Errorf("%w: span covers a pending insertion by %q", ErrInvalidSpan, r.Revision().Author)
		}
	}

	firstRun := ix.Run(firstIdx)
	lastRun := ix.Run(lastIdx)
	cutStart := m.Start - ix.RunStart(firstIdx)
	cutEnd := m.End - ix.RunStart(lastIdx)

	// Split so span boundaries align to run boundaries. Tail first so the
	// head offsets stay valid.
	if cutEnd < len(lastRun.Text()) {
		if _, err := p.SplitRun(lastRun, cutEnd); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
	}
	if cutStart > 0 {
		right, err := p.SplitRun(firstRun, cutStart)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
		if lastRun == firstRun {
			lastRun = right
		}
		firstRun = right
	}

	spanned, err := runsBetween(p, firstRun, lastRun)
	if err != nil {
		return err
	}

	now := w.now()
	delRev := &docx.Revision{Kind: docx.RevisionDeleted, Author: w.Author, Date: now, ID: ids.Next()}

	// Insert the replacement first: deleting the span may remove runs that
	// were pending insertions, which would invalidate the anchor.
	if proposal.NewText != "" {
		insRev := &docx.Revision{Kind: docx.RevisionInserted, Author: w.Author, Date: now, ID: ids.Next()}
		if _, err := p.InsertRunAfter(lastRun, proposal.NewText, firstRun, insRev); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
	}

	for _, r := range spanned {
		if _, err := p.MarkDeleted(r, delRev); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
	}
	return nil
}

// runsBetween collects the matchable runs from first to last inclusive,
// skipping opaque chunks that sit between them.
func runsBetween(p *docx.Paragraph, first, last *docx.Run) ([]*docx.Run, error) {
	runs := p.Runs()
	fi, li := -1, -1
	for i, r := range runs {
		if r == first {
			fi = i
		}
		if r == last {
			li = i
		}
	}
	if fi < 0 || li < 0 || li < fi {
		return nil, fmt.Errorf("%w: span endpoints not found in paragraph", ErrInvalidSpan)
	}
	return runs[fi : li+1], nil
}
