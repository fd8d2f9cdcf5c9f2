package matcher

import "strings"

// tierExact is Tier 1: a raw substring search, falling back to a search
// over LF-normalized copies of both document and search text when the
// raw search misses (the usual cause is a CRLF/LF mismatch).
func (m *Matcher) tierExact(search string) Result {
	if idx := strings.Index(m.doc, search); idx >= 0 {
		return Result{
			Found:      true,
			Start:      idx,
			End:        idx + len(search),
			Strategy:   StrategyExact,
			Confidence: 1.0,
		}
	}

	lfDoc := strings.ReplaceAll(m.doc, "\r\n", "\n")
	lfSearch := strings.ReplaceAll(search, "\r\n", "\n")
	lfIdx := strings.Index(lfDoc, lfSearch)
	if lfIdx < 0 {
		return Miss()
	}

	start := LFOffsetToOriginal(m.doc, lfIdx)
	end := LFOffsetToOriginal(m.doc, lfIdx+len(lfSearch))
	return Result{
		Found:      true,
		Start:      start,
		End:        end,
		Strategy:   StrategyExact,
		Confidence: 1.0,
	}
}

// LFOffsetToOriginal maps a byte offset in the CRLF-stripped copy of doc
// back to the corresponding offset in doc, by counting how many CRLF
// pairs (each contributing one extra byte) occur before it. Exported so
// pkg/recovery can convert offsets computed over its own LF-normalized
// line splits back to the real document the same way every matcher tier
// does.
func LFOffsetToOriginal(doc string, lfOffset int) int {
	orig := 0
	lfSeen := 0
	for orig < len(doc) && lfSeen < lfOffset {
		if doc[orig] == '\r' && orig+1 < len(doc) && doc[orig+1] == '\n' {
			orig += 2
		} else {
			orig++
		}
		lfSeen++
	}
	return orig
}
