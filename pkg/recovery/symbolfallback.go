package recovery

import (
	"context"
	"strings"

	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/matcher"
)

const (
	symbolScoreBase            = 0.5
	symbolScoreClassBonus      = 0.3
	symbolScoreInterfaceBonus  = 0.25
	symbolScoreFunctionBonus   = 0.2
	symbolScoreOtherBonus      = 0.1
	symbolScoreDetailMatchBonus = 0.15
	symbolFallbackContextLines = 5
)

// trySymbolFallback extracts anchor-shaped identifiers from search, asks
// the host for document symbols, scores each against those identifiers,
// and if the top-scored symbol clears symbolFallbackThreshold, restricts
// the search to a ±5-line window around it and retries Tier 1/Tier 2.
func trySymbolFallback(ctx context.Context, doc, search string, lookup SymbolLookup) (Result, bool) {
	candidates := matcher.ExtractAnchors(search)
	if len(candidates) == 0 {
		return Result{}, false
	}

	symbols, err := lookup(ctx)
	if err != nil || len(symbols) == 0 {
		return Result{}, false
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[c] = true
	}

	var best *applier.Symbol
	bestScore := -1.0
	for i := range symbols {
		sym := symbols[i]
		if !candidateSet[sym.Name] {
			continue
		}
		score := symbolScoreBase + kindBonus(sym.Kind)
		if sym.Detail != "" && strings.Contains(search, sym.Detail) {
			score += symbolScoreDetailMatchBonus
		}
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			bestScore = score
			best = &sym
		}
	}

	if best == nil || bestScore < symbolFallbackThreshold {
		return Result{}, false
	}

	docLines := splitLines(doc)
	lo := best.Line - 1 - symbolFallbackContextLines
	hi := best.Line - 1 + symbolFallbackContextLines
	if lo < 0 {
		lo = 0
	}
	if hi >= len(docLines) {
		hi = len(docLines) - 1
	}
	if lo > hi {
		return Result{}, false
	}

	windowText := strings.Join(docLines[lo:hi+1], "\n")
	m := matcher.New(windowText)
	r := m.Find(search, matcher.Options{})
	if !r.Found || (r.Strategy != matcher.StrategyExact && r.Strategy != matcher.StrategyWhitespaceNormalized) {
		return Result{}, false
	}

	byteOffset := 0
	for i := 0; i < lo; i++ {
		byteOffset += len(docLines[i]) + 1
	}

	// byteOffset and r.Start/r.End are both offsets into the LF-normalized
	// text docLines/windowText were built from; convert back to doc's own
	// offsets the same way every matcher tier does before returning them.
	start := matcher.LFOffsetToOriginal(doc, byteOffset+r.Start)
	end := matcher.LFOffsetToOriginal(doc, byteOffset+r.End)

	return Result{
		AutoApply: false,
		Suggestions: []Suggestion{{
			StartLine:       best.Line,
			Method:          MethodPartialMatch,
			Confidence:      r.Confidence * bestScore,
			DiffSummary:     "matched via symbol fallback near " + best.Name,
			AutoRecommended: false,
		}},
		Range:          applier.ByteRange{Start: start, End: end},
		AdjustedSearch: search,
	}, true
}

func kindBonus(kind applier.SymbolKind) float64 {
	switch kind {
	case applier.SymbolKindClass:
		return symbolScoreClassBonus
	case applier.SymbolKindInterface:
		return symbolScoreInterfaceBonus
	case applier.SymbolKindFunction:
		return symbolScoreFunctionBonus
	default:
		return symbolScoreOtherBonus
	}
}
