package matcher

import "strings"

// tierWhitespaceNormalized is Tier 2: normalize CRLF->LF and tab->two
// spaces in both texts (plus optional per-line leading/trailing trim),
// then search for the search text's line sequence inside the document's
// normalized lines. On hit, the byte range is computed from the original
// line boundaries, which the normalization preserves.
func (m *Matcher) tierWhitespaceNormalized(search string, opts Options) Result {
	docLines := splitLines(m.doc)
	searchLines := splitLines(search)
	if len(searchLines) == 0 || len(searchLines) > len(docLines) {
		return Miss()
	}

	normDoc := make([]string, len(docLines))
	for i, l := range docLines {
		normDoc[i] = normalizeTierTwo(l, opts)
	}
	normSearch := make([]string, len(searchLines))
	for i, l := range searchLines {
		normSearch[i] = normalizeTierTwo(l, opts)
	}

	for start := 0; start+len(normSearch) <= len(normDoc); start++ {
		match := true
		for o := range normSearch {
			if normDoc[start+o] != normSearch[o] {
				match = false
				break
			}
		}
		if match {
			lfStart, lfEnd := lineRangeByteOffsets(docLines, start, start+len(normSearch))
			return Result{
				Found:      true,
				Start:      LFOffsetToOriginal(m.doc, lfStart),
				End:        LFOffsetToOriginal(m.doc, lfEnd),
				Strategy:   StrategyWhitespaceNormalized,
				Confidence: 0.95,
			}
		}
	}
	return Miss()
}

func normalizeTierTwo(line string, opts Options) string {
	line = strings.ReplaceAll(line, "\t", "  ")
	if opts.IgnoreTrailingWS {
		line = strings.TrimRight(line, " \t")
	}
	if opts.IgnoreLeadingWS {
		line = strings.TrimLeft(line, " \t")
	}
	return line
}

// splitLines splits s into lines after normalizing CRLF to LF, so
// downstream code operates purely on \n boundaries.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// lineRangeByteOffsets returns the [start,end) byte offsets of the lines
// docLines[from:to] within the LF-normalized text they were split from.
// Callers needing offsets into a possibly-CRLF original pass these
// through LFOffsetToOriginal.
func lineRangeByteOffsets(docLines []string, from, to int) (int, int) {
	start := 0
	for i := 0; i < from; i++ {
		start += len(docLines[i]) + 1
	}
	end := start
	for i := from; i < to; i++ {
		end += len(docLines[i])
		if i != to-1 {
			end++
		}
	}
	return start, end
}
