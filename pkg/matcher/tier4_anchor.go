package matcher

import (
	"regexp"
	"strings"
)

// anchorPatterns are tried in priority order against each line of the
// search text to extract identifier-shaped anchors a document is likely
// to contain exactly once.
var anchorPatterns = []*regexp.Regexp{
	// function / method declarations
	regexp.MustCompile(`\bfunc(?:\s+\([^)]*\))?\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	regexp.MustCompile(`\bfunction\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`),
	regexp.MustCompile(`\bdef\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	// class declarations
	regexp.MustCompile(`\bclass\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
	// arrow-function / value bindings
	regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)\s*=>`),
	regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`),
	// interface / type declarations
	regexp.MustCompile(`\b(?:interface|type)\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
	// decorated names
	regexp.MustCompile(`^\s*@([A-Za-z_$][A-Za-z0-9_$.]*)`),
	// export declarations
	regexp.MustCompile(`\bexport\s+(?:default\s+)?(?:function|class|const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
	// string literals longer than ten alphanumeric characters
	regexp.MustCompile(`["'` + "`" + `]([A-Za-z0-9_]{11,})["'` + "`" + `]`),
}

// ExtractAnchors runs anchorPatterns over search in priority order,
// returning the captured identifiers in order of discovery, deduplicated.
// Exported so Recovery's symbol fallback can reuse the same extraction.
func ExtractAnchors(search string) []string {
	seen := make(map[string]bool)
	var anchors []string
	for _, line := range splitLines(search) {
		for _, pat := range anchorPatterns {
			if m := pat.FindStringSubmatch(line); m != nil {
				anchor := m[1]
				if !seen[anchor] {
					seen[anchor] = true
					anchors = append(anchors, anchor)
				}
			}
		}
	}
	return anchors
}

// anchorUniqueness scores an anchor by how many times it occurs in doc.
func anchorUniqueness(doc, anchor string) float64 {
	count := countOccurrences(doc, anchor)
	switch {
	case count == 0:
		return -1 // disqualified
	case count == 1:
		return 1.0
	case count == 2:
		return 0.8
	case count <= 5:
		return 0.5
	default:
		return 0.2
	}
}

func countOccurrences(doc, anchor string) int {
	count := 0
	for idx := 0; idx < len(doc); {
		i := strings.Index(doc[idx:], anchor)
		if i < 0 {
			break
		}
		count++
		idx += i + len(anchor)
	}
	return count
}

// tierAnchorBased is Tier 4: pick the search text's most unique anchor
// identifier, locate every occurrence in the document, expand a
// [-20,+50] line window around each, and run Tier 3 with max_line_diffs
// 1 inside each candidate window.
func (m *Matcher) tierAnchorBased(search string, opts Options) Result {
	anchors := ExtractAnchors(search)
	if len(anchors) == 0 {
		return Miss()
	}

	bestAnchor := ""
	bestScore := -1.0
	for _, a := range anchors {
		score := anchorUniqueness(m.doc, a)
		if score > bestScore {
			bestScore = score
			bestAnchor = a
		}
	}
	if bestScore < 0 {
		return Miss()
	}

	docLines := splitLines(m.doc)
	searchLines := splitLines(search)

	var occurrenceLines []int
	for i, line := range docLines {
		if strings.Contains(line, bestAnchor) {
			occurrenceLines = append(occurrenceLines, i)
		}
	}

	narrowOpts := opts
	narrowOpts.MaxLineDiffs = 1

	for _, occ := range occurrenceLines {
		lo := occ - 20
		hi := occ + 50
		if lo < 0 {
			lo = 0
		}
		if hi > len(docLines)-len(searchLines) {
			hi = len(docLines) - len(searchLines)
		}
		if hi < lo {
			continue
		}
		windowed := narrowOpts
		windowed.LineRangeHint = &LineRangeHint{Start: lo + 1, End: hi + 1}
		windowed.LineRangeExpansion = 0

		r := m.tierLineTolerant(search, windowed)
		if r.Found {
			r.Strategy = StrategyAnchorBased
			r.Confidence = r.Confidence * bestScore
			return r
		}
	}
	return Miss()
}
