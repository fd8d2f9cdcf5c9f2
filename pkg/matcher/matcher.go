// Package matcher locates a hunk's search text inside a document using a
// five-tier cascade of increasingly tolerant strategies, returning a byte
// range and a confidence score, or a miss.
package matcher

import (
	"strings"

	"github.com/thehowl/patchy/pkg/lineindex"
)

// Strategy names the tier that produced a result (or None on a miss).
type Strategy string

const (
	StrategyExact               Strategy = "exact"
	StrategyWhitespaceNormalized Strategy = "whitespace_normalized"
	StrategyLineTolerant         Strategy = "line_tolerant"
	StrategyAnchorBased          Strategy = "anchor_based"
	StrategyFuzzyConstrained     Strategy = "fuzzy_constrained"
	StrategyNone                 Strategy = "none"
)

// LineRangeHint is an advisory 1-indexed inclusive line range.
type LineRangeHint struct {
	Start, End int
}

// Options configures a single Find call. Zero value is the default
// configuration described in the tier documentation below.
type Options struct {
	NormalizeWhitespace bool
	IgnoreTrailingWS    bool
	IgnoreLeadingWS     bool
	MaxLineDiffs        int // default 2
	LineRangeHint       *LineRangeHint
	LineRangeExpansion  int // default 30
	MinFuzzyConfidence  float64 // default 0.85
	UseAnchors          bool
}

func (o Options) withDefaults() Options {
	if o.MaxLineDiffs == 0 {
		o.MaxLineDiffs = 2
	}
	if o.LineRangeExpansion == 0 {
		o.LineRangeExpansion = 30
	}
	if o.MinFuzzyConfidence == 0 {
		o.MinFuzzyConfidence = 0.85
	}
	return o
}

// Result is the outcome of a Find call: either a hit with a byte range,
// or a miss (Found false, Strategy StrategyNone). A miss does not record
// which tiers were tried.
type Result struct {
	Found      bool
	Start, End int
	Strategy   Strategy
	Confidence float64
}

// Miss builds a Result reporting no match was found.
func Miss() Result { return Result{Found: false, Strategy: StrategyNone} }

// Matcher owns a document snapshot and the LineIndex built over it, for
// the duration of a single apply call.
type Matcher struct {
	doc string
	idx *lineindex.Index
}

// New constructs a Matcher over doc. The returned value is meant to be
// used for exactly one search-and-replace cycle.
func New(doc string) *Matcher {
	return &Matcher{doc: doc, idx: lineindex.Build(doc)}
}

// Find runs the five-tier cascade against search, stopping at the first
// tier that hits.
func (m *Matcher) Find(search string, opts Options) Result {
	opts = opts.withDefaults()

	if r := m.tierExact(search); r.Found {
		return r
	}
	if r := m.tierWhitespaceNormalized(search, opts); r.Found {
		return r
	}
	if r := m.tierLineTolerant(search, opts); r.Found {
		return r
	}
	if opts.UseAnchors {
		if r := m.tierAnchorBased(search, opts); r.Found {
			return r
		}
	}
	if r := m.tierFuzzyConstrained(search, opts); r.Found {
		return r
	}
	return Miss()
}

// ApplyLineEndingPolicy translates \n in replacement to \r\n when doc
// contains any CRLF and replacement contains none, per the policy:
// after a successful find, if the document contains any \r\n and the
// replacement contains none, translate every \n to \r\n.
func ApplyLineEndingPolicy(doc, replacement string) string {
	if strings.Contains(doc, "\r\n") && !strings.Contains(replacement, "\r\n") {
		return strings.ReplaceAll(replacement, "\n", "\r\n")
	}
	return replacement
}

// TokenJaccard scores two lines by Jaccard overlap of whitespace-split
// tokens longer than one character. Shared by Tier 5 and by Recovery's
// candidate enumeration, which uses the same comparator.
func TokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		if len(tok) > 1 {
			set[tok] = true
		}
	}
	return set
}

// LineSimilarity scores one pair of document/search lines per Tier 5:
// 1.0 on trimmed-equal, 0.5 if exactly one is blank, else token Jaccard.
func LineSimilarity(docLine, searchLine string) float64 {
	dt := strings.TrimSpace(docLine)
	st := strings.TrimSpace(searchLine)
	if dt == st {
		return 1.0
	}
	if (dt == "") != (st == "") {
		return 0.5
	}
	return TokenJaccard(dt, st)
}
