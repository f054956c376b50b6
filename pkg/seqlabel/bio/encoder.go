package bio

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
)

// ErrSpanAlignment reports a mention whose text cannot be located anywhere in
// the record, i.e. the model returned a snippet that does not exist. Terminal
// for the record, never retried: the same call would hallucinate again.
var ErrSpanAlignment = errors.New("span alignment failed")

// Span is a located entity occurrence: byte offsets into the record text.
type Span struct {
	Label tagger.Label
	Text  string
	Start int
	End   int
}

// TaggedToken pairs a token with its BIO tag.
type TaggedToken struct {
	Text string
	Tag  string
}

// Encode tokenizes text and assigns a BIO tag to every token exactly once.
//
// Mentions are located by exact string search; every occurrence of a mention
// becomes a candidate span. Overlapping candidates are resolved
// earliest-start-wins, longest-wins on equal start; dropped spans are
// silently discarded. A mention with no occurrence at all makes the whole
// record fail with ErrSpanAlignment.
func Encode(text string, mentions []tagger.Mention) ([]TaggedToken, error) {
	spans, err := Locate(text, mentions)
	if err != nil {
		return nil, err
	}
	return EncodeSpans(text, spans), nil
}

// Locate expands mentions into candidate spans by finding every exact
// occurrence in text. Mentions with invalid labels are rejected as alignment
// failures too, so a drifting model prompt surfaces loudly instead of
// producing unlabeled output.
func Locate(text string, mentions []tagger.Mention) ([]Span, error) {
	var spans []Span
	for _, m := range mentions {
		if !m.Label.Valid() {
			return nil, fmt.Errorf("%w: unknown label %q", ErrSpanAlignment, m.Label)
		}
		needle := strings.TrimSpace(m.Text)
		if needle == "" {
			continue
		}
		found := false
		for from := 0; ; {
			i := strings.Index(text[from:], needle)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, Span{Label: m.Label, Text: needle, Start: start, End: start + len(needle)})
			found = true
			from = start + 1
		}
		if !found {
			return nil, fmt.Errorf("%w: %q not found in record", ErrSpanAlignment, needle)
		}
	}
	return spans, nil
}

// EncodeSpans tokenizes text and tags it from already-located spans.
func EncodeSpans(text string, spans []Span) []TaggedToken {
	tokens := Tokenize(text)
	kept := resolveOverlaps(spans)

	tags := make([]string, len(tokens))
	for i := range tags {
		tags[i] = "O"
	}

	// First claim wins: kept spans never overlap by characters, but the
	// half-overlap token rule can make two spans reach for the same boundary
	// token. Leaving the earlier claim in place keeps every B-/I- run intact.
	for _, span := range kept {
		first := true
		for i, tok := range tokens {
			if tags[i] != "O" || !tokenInSpan(tok, span) {
				continue
			}
			if first {
				tags[i] = "B-" + string(span.Label)
				first = false
			} else {
				tags[i] = "I-" + string(span.Label)
			}
		}
	}

	out := make([]TaggedToken, len(tokens))
	for i, tok := range tokens {
		out[i] = TaggedToken{Text: tok.Text, Tag: tags[i]}
	}
	return out
}

// resolveOverlaps keeps a non-overlapping subset of spans: candidates are
// ordered by start ascending then length descending, and a span survives only
// if it overlaps nothing already kept. Exact duplicates collapse to one.
func resolveOverlaps(spans []Span) []Span {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End-sorted[i].Start > sorted[j].End-sorted[j].Start
	})

	var kept []Span
	for _, cand := range sorted {
		overlaps := false
		for _, k := range kept {
			if cand.Start < k.End && k.Start < cand.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, cand)
		}
	}
	return kept
}

// tokenInSpan reports whether tok belongs to span: either fully contained or
// overlapping by at least half the token's length. The half-overlap rule
// keeps tokens that a span clips at a boundary the model placed mid-token.
func tokenInSpan(tok Token, span Span) bool {
	overlapStart := max(tok.Start, span.Start)
	overlapEnd := min(tok.End, span.End)
	overlap := overlapEnd - overlapStart
	if overlap <= 0 {
		return false
	}
	if tok.Start >= span.Start && tok.End <= span.End {
		return true
	}
	return overlap*2 >= tok.End-tok.Start
}
