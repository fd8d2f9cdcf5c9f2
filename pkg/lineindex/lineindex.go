// Package lineindex builds an immutable per-line lookup structure over a
// document so the matcher can locate candidate lines without rescanning
// the whole document for every hunk.
package lineindex

import "strings"

// Index is immutable once built: original lines, a parallel normalized
// line vector, and a normalized-line -> sorted line-index map.
type Index struct {
	original   []string
	normalized []string
	byLine     map[string][]int
}

// Build constructs an Index over doc. Line endings are normalized
// (CRLF -> LF) for indexing purposes only; the caller keeps the original
// bytes elsewhere for positional math.
func Build(doc string) *Index {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	lines := strings.Split(doc, "\n")

	idx := &Index{
		original:   lines,
		normalized: make([]string, len(lines)),
		byLine:     make(map[string][]int, len(lines)),
	}
	for i, l := range lines {
		n := normalizeLine(l)
		idx.normalized[i] = n
		idx.byLine[n] = append(idx.byLine[n], i)
	}
	return idx
}

// normalizeLine replaces tabs with two spaces, trims both ends, and
// lowercases — the single normalization rule shared by every lookup.
func normalizeLine(s string) string {
	s = strings.ReplaceAll(s, "\t", "  ")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// Line returns the original (un-normalized) text of line i.
func (idx *Index) Line(i int) string {
	if i < 0 || i >= len(idx.original) {
		return ""
	}
	return idx.original[i]
}

// Len reports the number of lines indexed.
func (idx *Index) Len() int { return len(idx.original) }

// FindLine returns the indices, in ascending order, of every line whose
// normalized form equals the normalized form of q.
func (idx *Index) FindLine(q string) []int {
	return idx.byLine[normalizeLine(q)]
}

// FindSequenceStart returns every line index i such that, for every
// offset o in [0, len(qs)), idx.normalized[i+o] equals the normalized
// form of qs[o]. Blank-to-blank lines count as equal.
func (idx *Index) FindSequenceStart(qs []string) []int {
	if len(qs) == 0 {
		return nil
	}
	normQs := make([]string, len(qs))
	for i, l := range qs {
		normQs[i] = normalizeLine(l)
	}

	candidates := idx.byLine[normQs[0]]
	if len(candidates) == 0 {
		return nil
	}

	var starts []int
	for _, start := range candidates {
		if start+len(normQs) > len(idx.normalized) {
			continue
		}
		match := true
		for o := 1; o < len(normQs); o++ {
			if idx.normalized[start+o] != normQs[o] {
				match = false
				break
			}
		}
		if match {
			starts = append(starts, start)
		}
	}
	return starts
}
