// Package recovery runs after every matcher tier has missed: it looks
// for a plausible near-match, classifies how the document differs from
// the search text, and either returns a directly-applicable fix or a
// ranked list of suggestions for a human to choose from.
package recovery

import (
	"context"
	"sort"
	"strings"

	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/matcher"
)

// Method names the recovery strategy that produced a Suggestion.
type Method string

const (
	MethodWhitespaceAdjust Method = "whitespace-adjust"
	MethodPartialMatch     Method = "partial-match"
	MethodLineReorder      Method = "line-reorder"
	MethodNone             Method = "none"
)

// LineClass classifies one line of the comparison between the search
// text and a candidate document region.
type LineClass string

const (
	LineMatch     LineClass = "match"
	LineWhitespace LineClass = "whitespace"
	LineContent   LineClass = "content"
	LineMissing   LineClass = "missing"
	LineExtra     LineClass = "extra"
)

// Suggestion is one ranked recovery candidate.
type Suggestion struct {
	StartLine       int // 1-indexed
	Method          Method
	Confidence      float64
	DiffSummary     string
	AutoRecommended bool
}

// Result is the outcome of Attempt: either a direct auto-applicable fix
// (AdjustedSearch + the byte range to replace it at) or a ranked list of
// suggestions for the caller to present.
type Result struct {
	AutoApply      bool
	Range          applier.ByteRange
	AdjustedSearch string
	Suggestions    []Suggestion
}

// Options configures a single Attempt call.
type Options struct {
	Symbols SymbolLookup // optional
}

// SymbolLookup is the subset of applier.SymbolProvider recovery needs,
// narrowed to a single path so callers don't have to thread ctx/path
// through every call site.
type SymbolLookup func(ctx context.Context) ([]applier.Symbol, error)

const (
	autoApplyWhitespaceConfidence = 0.85
	autoApplyAnyConfidence        = 0.95
	symbolFallbackThreshold       = 0.5
	maxSuggestions                = 5
)

// Attempt runs Recovery's candidate enumeration and classification over
// doc for the hunk's search text, after all matcher tiers have missed.
func Attempt(ctx context.Context, doc, search string, opts Options) Result {
	docLines := splitLines(doc)
	searchLines := splitLines(search)
	if len(searchLines) == 0 || len(docLines) == 0 {
		return Result{}
	}

	candidates := enumerateCandidates(docLines, searchLines)

	var suggestions []Suggestion
	var bestAuto *analysis

	for _, start := range candidates {
		a := analyzeRecovery(docLines, searchLines, start)
		if a.confidence > 0 {
			suggestions = append(suggestions, Suggestion{
				StartLine:   start + 1,
				Method:      a.method,
				Confidence:  a.confidence,
				DiffSummary: a.summary(),
			})
		}
		if bestAuto == nil || a.confidence > bestAuto.confidence {
			cp := a
			bestAuto = &cp
		}
	}

	if bestAuto != nil && bestAuto.qualifiesForAutoApply() {
		rng, adjusted := buildWhitespaceAdjustedFix(docLines, searchLines, bestAuto.start)
		// rng is computed over docLines, which splitLines produced by
		// stripping \r\n to \n; convert back to a real offset into doc
		// the same way every matcher tier does, or a CRLF document's
		// range would be short by one byte per preceding line.
		rng.Start = matcher.LFOffsetToOriginal(doc, rng.Start)
		rng.End = matcher.LFOffsetToOriginal(doc, rng.End)
		return Result{
			AutoApply:      true,
			Range:          rng,
			AdjustedSearch: adjusted,
		}
	}

	if opts.Symbols != nil {
		if r, ok := trySymbolFallback(ctx, doc, search, opts.Symbols); ok {
			return r
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	for i := range suggestions {
		suggestions[i].AutoRecommended = suggestions[i].Confidence >= autoApplyAnyConfidence ||
			(suggestions[i].Method == MethodWhitespaceAdjust && suggestions[i].Confidence >= autoApplyWhitespaceConfidence)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return Result{Suggestions: suggestions}
}

// enumerateCandidates finds every file line whose trimmed-normalized
// form equals the trimmed-normalized first search line, plus lines whose
// first-line token-Jaccard similarity exceeds 0.8.
func enumerateCandidates(docLines, searchLines []string) []int {
	if len(searchLines) == 0 {
		return nil
	}
	firstSearch := strings.TrimSpace(searchLines[0])
	windowLen := len(searchLines)

	seen := make(map[int]bool)
	var starts []int
	for i, line := range docLines {
		if i+windowLen > len(docLines) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == firstSearch || matcher.TokenJaccard(trimmed, firstSearch) > 0.8 {
			if !seen[i] {
				seen[i] = true
				starts = append(starts, i)
			}
		}
	}
	return starts
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
