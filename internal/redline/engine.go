package redline

import (
	"errors"
	"fmt"
	"time"

	"docxredline/internal/docx"
	"docxredline/pkg/redlineapi"
)

// Options configure one engine.
type Options struct {
	Author         string
	FuzzyEnabled   bool
	FuzzyThreshold float64
	FuzzyMargin    float64
	Clock          func() time.Time // test hook, nil means time.Now
}

// DefaultOptions returns the engine defaults: fuzzy matching off, and when
// enabled a 0.80 similarity floor with a 0.05 ambiguity margin.
func DefaultOptions() Options {
	return Options{
		Author:         "AI Redline",
		FuzzyThreshold: 0.80,
		FuzzyMargin:    0.05,
	}
}

// Engine applies edit proposals to docx files as tracked changes.
type Engine struct {
	opts Options
}

// New creates an engine, filling unset numeric options from the defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Author == "" {
		opts.Author = def.Author
	}
	if opts.FuzzyThreshold == 0 {
		opts.FuzzyThreshold = def.FuzzyThreshold
	}
	if opts.FuzzyMargin == 0 {
		opts.FuzzyMargin = def.FuzzyMargin
	}
	return &Engine{opts: opts}
}

// Result is the outcome of redlining one document.
type Result struct {
	Output           []byte
	Entries          []redlineapi.ChangeEntry
	ParagraphsBefore []string
	ParagraphsAfter  []string
}

// Applied counts the proposals that were applied.
func (r *Result) Applied() int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == redlineapi.OutcomeApplied {
			n++
		}
	}
	return n
}

// Redline parses input, applies the proposals strictly in input order and
// serializes the result. Per-proposal failures are recorded in the entries
// and processing continues; only container-level failures abort.
//
// Order matters: an applied edit changes run boundaries and may introduce
// text that a later proposal targets, so each proposal is located against
// the document state left by its predecessors.
func (e *Engine) Redline(input []byte, proposals []redlineapi.EditProposal) (*Result, error) {
	doc, err := docx.Parse(input)
	if err != nil {
		return nil, err
	}

	before := doc.ParagraphTexts()
	ids := NewIDAllocator(doc.MaxRevisionID() + 1)
	locator := &Locator{
		Fuzzy:     e.opts.FuzzyEnabled,
		Threshold: e.opts.FuzzyThreshold,
		Margin:    e.opts.FuzzyMargin,
	}
	writer := &Writer{Author: e.opts.Author, Clock: e.opts.Clock}

	entries := make([]redlineapi.ChangeEntry, 0, len(proposals))
	for i, prop := range proposals {
		entry := redlineapi.ChangeEntry{Proposal: prop, Outcome: redlineapi.OutcomeSkipped}

		// Runs shift as edits land, so every proposal gets fresh indexes.
		indexes := make([]*TextIndex, 0, len(doc.Paragraphs()))
		for _, p := range doc.Paragraphs() {
			indexes = append(indexes, BuildIndex(p))
		}

		m, found := locator.Find(indexes, prop.OriginalText)
		if !found {
			entry.SkipReason = redlineapi.SkipNotFound
			if m.Ambiguous {
				entry.SkipReason = redlineapi.SkipAmbiguous
				entry.Confidence = m.Confidence
				entry.Ambiguous = true
			}
			entries = append(entries, entry)
			continue
		}

		if err := writer.Apply(indexes[m.Paragraph], m, prop, ids); err != nil {
			if errors.Is(err, ErrInvalidSpan) {
				entry.SkipReason = redlineapi.SkipInvalidSpan
				entries = append(entries, entry)
				continue
			}
			return nil, fmt.Errorf("proposal %d: %w", i, err)
		}

		entry.Outcome = redlineapi.OutcomeApplied
		entry.SkipReason = ""
		entry.Confidence = m.Confidence
		entry.Paragraph = m.Paragraph
		entry.Ambiguous = m.Ambiguous
		entries = append(entries, entry)
	}

	output, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:           output,
		Entries:          entries,
		ParagraphsBefore: before,
		ParagraphsAfter:  doc.ParagraphTexts(),
	}, nil
}

// RedlineDocument applies proposals to a docx file with default options and
// returns the rewritten bytes plus one report entry per proposal.
func RedlineDocument(input []byte, proposals []redlineapi.EditProposal) ([]byte, []redlineapi.ChangeEntry, error) {
	res, err := New(DefaultOptions()).Redline(input, proposals)
	if err != nil {
		return nil, nil, err
	}
	return res.Output, res.Entries, nil
}
