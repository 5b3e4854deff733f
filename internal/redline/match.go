package redline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"docxredline/pkg/redlineapi"
)

// MatchResult locates a proposal's original text inside one paragraph.
// Offsets are byte offsets into that paragraph's flattened text.
type MatchResult struct {
	Paragraph  int
	Start, End int
	Confidence string
	Ambiguous  bool
}

// Locator finds occurrences of proposal text across a document's paragraph
// indexes. It is read-only and safe to re-run; priority is exact match,
// then whitespace-normalized, then (when enabled) fuzzy.
type Locator struct {
	Fuzzy     bool
	Threshold float64 // minimum similarity (1 - levenshtein/length) for fuzzy
	Margin    float64 // best fuzzy window must beat the runner-up by this much
}

// Find returns the located span and whether the proposal is applicable.
// When the result is not found but Ambiguous is set, several fuzzy windows
// scored too close together to pick one safely.
func (l *Locator) Find(indexes []*TextIndex, original string) (MatchResult, bool) {
	if original == "" {
		return MatchResult{}, false
	}

	if m, ok := findExact(indexes, original); ok {
		return m, true
	}
	if m, ok := findNormalized(indexes, original); ok {
		return m, true
	}
	if l.Fuzzy {
		return l.findFuzzy(indexes, original)
	}
	return MatchResult{}, false
}

// findExact scans paragraphs in document order for a raw substring match.
// Several occurrences in the same paragraph resolve to the first one, with
// the ambiguity recorded for the report.
func findExact(indexes []*TextIndex, needle string) (MatchResult, bool) {
	for pi, ix := range indexes {
		start := strings.Index(ix.Flatten(), needle)
		if start < 0 {
			continue
		}
		return MatchResult{
			Paragraph:  pi,
			Start:      start,
			End:        start + len(needle),
			Confidence: redlineapi.MatchExact,
			Ambiguous:  strings.Count(ix.Flatten(), needle) > 1,
		}, true
	}
	return MatchResult{}, false
}

// findNormalized matches with runs of whitespace collapsed to single spaces
// on both sides and the needle trimmed. The per-byte offset table built
// during normalization maps the hit back to exact raw offsets.
func findNormalized(indexes []*TextIndex, needle string) (MatchResult, bool) {
	normNeedle, _ := normalize(needle)
	if normNeedle == "" {
		return MatchResult{}, false
	}
	for pi, ix := range indexes {
		norm, rawOff := normalize(ix.Flatten())
		start := strings.Index(norm, normNeedle)
		if start < 0 {
			continue
		}
		end := start + len(normNeedle)
		return MatchResult{
			Paragraph:  pi,
			Start:      rawOff[start],
			End:        rawOff[end-1] + 1,
			Confidence: redlineapi.MatchNormalized,
			Ambiguous:  strings.Count(norm, normNeedle) > 1,
		}, true
	}
	return MatchResult{}, false
}

// normalize collapses whitespace runs to a single space. rawOff[i] is the
// raw byte offset that produced normalized byte i; for a collapsed space it
// is the offset of the first whitespace byte of the run.
func normalize(s string) (string, []int) {
	var b strings.Builder
	rawOff := make([]int, 0, len(s))
	pendingSpace := -1 // raw offset of the first whitespace byte of the current run
	for i, r := range s {
		if unicode.IsSpace(r) {
			if pendingSpace < 0 {
				pendingSpace = i
			}
			continue
		}
		if pendingSpace >= 0 {
			if b.Len() > 0 {
				b.WriteByte(' ')
				rawOff = append(rawOff, pendingSpace)
			}
			pendingSpace = -1
		}
		n := utf8.RuneLen(r)
		b.WriteRune(r)
		for k := 0; k < n; k++ {
			rawOff = append(rawOff, i+k)
		}
	}
	return b.String(), rawOff
}

// fuzzyCandidate is one scored sliding window.
type fuzzyCandidate struct {
	para       int
	start, end int // byte offsets
	score      float64
}

func overlaps(a, b fuzzyCandidate) bool {
	return a.para == b.para && a.start < b.end && b.start < a.end
}

// findFuzzy slides a window of the needle's rune length across every
// paragraph and scores each window by levenshtein similarity. The best
// window wins only if it clears the threshold and beats every
// non-overlapping runner-up by the configured margin; otherwise the
// proposal is ambiguous and skipped.
func (l *Locator) findFuzzy(indexes []*TextIndex, needle string) (MatchResult, bool) {
	dmp := diffmatchpatch.New()
	needleRunes := utf8.RuneCountInString(needle)
	if needleRunes == 0 {
		return MatchResult{}, false
	}

	var best, second fuzzyCandidate
	best.score = -1
	second.score = -1

	for pi, ix := range indexes {
		text := ix.Flatten()
		// Byte offset of every rune boundary, including the final one.
		bounds := make([]int, 0, len(text)+1)
		for i := range text {
			if utf8.RuneStart(text[i]) {
				bounds = append(bounds, i)
			}
		}
		bounds = append(bounds, len(text))

		total := len(bounds) - 1
		if total == 0 {
			continue
		}
		window := needleRunes
		if window > total {
			window = total
		}

		for s := 0; s+window <= total; s++ {
			cand := fuzzyCandidate{
				para:  pi,
				start: bounds[s],
				end:   bounds[s+window],
			}
			diffs := dmp.DiffMain(needle, text[cand.start:cand.end], false)
			dist := dmp.DiffLevenshtein(diffs)
			longer := needleRunes
			if window > longer {
				longer = window
			}
			cand.score = 1 - float64(dist)/float64(longer)

			switch {
			case cand.score > best.score:
				if !overlaps(cand, best) {
					second = best
				}
				best = cand
			case !overlaps(cand, best) && cand.score > second.score:
				second = cand
			}
		}
	}

	if best.score < l.Threshold {
		return MatchResult{}, false
	}
	if second.score >= 0 && best.score-second.score < l.Margin {
		return MatchResult{Confidence: redlineapi.MatchFuzzy, Ambiguous: true}, false
	}
	return MatchResult{
		Paragraph:  best.para,
		Start:      best.start,
		End:        best.end,
		Confidence: redlineapi.MatchFuzzy,
	}, true
}
