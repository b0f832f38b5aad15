package optimize

import "strings"

// DefaultCandidateLimit is the external length ceiling on a candidate,
// counted in runes.
const DefaultCandidateLimit = 280

// TruncationMarker is appended when a generated candidate exceeds the limit.
const TruncationMarker = "..."

// Candidate is one produced, immutable text artifact under optimization.
// A new iteration produces a new Candidate rather than mutating the old one.
type Candidate string

// String returns the candidate text.
func (c Candidate) String() string { return string(c) }

// Len returns the candidate length in runes, the unit the external limit
// is counted in.
func (c Candidate) Len() int { return len([]rune(string(c))) }

// TruncateCandidate trims whitespace and enforces the rune limit, appending
// the truncation marker when the text exceeds it. Enforcement happens at the
// generator boundary; the optimization loop never alters a candidate.
func TruncateCandidate(text string, limit int) Candidate {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return Candidate(text)
	}
	cut := limit - len([]rune(TruncationMarker))
	if cut < 0 {
		cut = 0
	}
	return Candidate(string(runes[:cut]) + TruncationMarker)
}
