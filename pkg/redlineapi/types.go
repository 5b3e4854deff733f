package redlineapi

import "encoding/json"

// EditProposal is one suggested replacement supplied by the analysis step.
// The engine treats it as opaque text; Reason is surfaced in the report only.
type EditProposal struct {
	OriginalText string `json:"original_text"`
	NewText      string `json:"new_text"`
	Reason       string `json:"reason,omitempty"`
}

// Outcome values for a change entry.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
)

// Skip reasons for proposals that could not be applied.
const (
	SkipNotFound    = "not_found"
	SkipAmbiguous   = "ambiguous"
	SkipInvalidSpan = "invalid_span"
)

// Match confidence levels, in the order the locator tries them.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
	MatchFuzzy      = "fuzzy"
)

// ChangeEntry reports what happened to one proposal. The response carries one
// entry per proposal, in proposal order.
type ChangeEntry struct {
	Proposal   EditProposal `json:"proposal"`
	Outcome    string       `json:"outcome"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Confidence string       `json:"confidence,omitempty"`
	Paragraph  int          `json:"paragraph,omitempty"` // index of the edited paragraph
	Ambiguous  bool         `json:"ambiguous,omitempty"` // several occurrences existed; the first was edited
}

// RedlineResponse is the body of a successful POST /api/redline.
type RedlineResponse struct {
	Changes       []ChangeEntry   `json:"changes"`
	Applied       int             `json:"applied"`
	Skipped       int             `json:"skipped"`
	TextDelta     json.RawMessage `json:"text_delta,omitempty"` // RFC 6902 patch between before/after paragraph texts
	DownloadToken string          `json:"download_token"`
	Version       string          `json:"version"` // content hash of the redlined file
}
