package matcher

import "strings"

// tierLineTolerant is Tier 3: slide a window of len(searchLines) through
// the candidate region (the hint ± LineRangeExpansion, or the whole file
// when there is no hint), scoring each position by classifying every
// line mismatch as whitespace-only or content, and keep the best window
// globally.
func (m *Matcher) tierLineTolerant(search string, opts Options) Result {
	docLines := splitLines(m.doc)
	searchLines := splitLines(search)
	if len(searchLines) == 0 || len(searchLines) > len(docLines) {
		return Miss()
	}

	lo, hi := candidateRange(len(docLines), len(searchLines), opts)

	bestConfidence := -1.0
	bestStart := -1
	for start := lo; start <= hi; start++ {
		if start+len(searchLines) > len(docLines) {
			break
		}
		contentDiffs, whitespaceDiffs := 0, 0
		for o, sLine := range searchLines {
			dLine := docLines[start+o]
			if dLine == sLine {
				continue
			}
			if strings.TrimSpace(dLine) == strings.TrimSpace(sLine) {
				whitespaceDiffs++
			} else {
				contentDiffs++
			}
		}
		if contentDiffs > opts.MaxLineDiffs {
			continue
		}
		confidence := 1.0 - 0.1*float64(contentDiffs) - 0.02*float64(whitespaceDiffs)
		if confidence < 0.7 {
			continue
		}
		if confidence > bestConfidence {
			bestConfidence = confidence
			bestStart = start
		}
	}

	if bestStart < 0 {
		return Miss()
	}

	lfStart, lfEnd := lineRangeByteOffsets(docLines, bestStart, bestStart+len(searchLines))
	return Result{
		Found:      true,
		Start:      LFOffsetToOriginal(m.doc, lfStart),
		End:        LFOffsetToOriginal(m.doc, lfEnd),
		Strategy:   StrategyLineTolerant,
		Confidence: bestConfidence,
	}
}

// candidateRange returns the [lo, hi] inclusive window-start range to
// search: the hint expanded by LineRangeExpansion lines on each side
// when present, else the entire document.
func candidateRange(numDocLines, windowLen int, opts Options) (int, int) {
	maxStart := numDocLines - windowLen
	if maxStart < 0 {
		maxStart = 0
	}
	if opts.LineRangeHint == nil {
		return 0, maxStart
	}
	lo := opts.LineRangeHint.Start - 1 - opts.LineRangeExpansion
	hi := opts.LineRangeHint.End - 1 + opts.LineRangeExpansion
	if lo < 0 {
		lo = 0
	}
	if hi > maxStart {
		hi = maxStart
	}
	if hi < lo {
		return 0, maxStart
	}
	return lo, hi
}
