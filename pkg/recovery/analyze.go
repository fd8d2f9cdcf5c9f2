package recovery

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/thehowl/patchy/pkg/applier"
)

var dmp = diffmatchpatch.New()

// analysis is the per-candidate result of analyzeRecovery: per-line
// classification counts plus the chosen method/confidence per the
// classification table.
type analysis struct {
	start                                      int
	match, whitespace, content, missing, extra int
	method                                     Method
	confidence                                 float64
}

func (a analysis) matchRatio() float64 {
	total := a.match + a.whitespace + a.content + a.missing + a.extra
	if total == 0 {
		return 0
	}
	return float64(a.match+a.whitespace) / float64(total)
}

func (a analysis) qualifiesForAutoApply() bool {
	if a.method == MethodWhitespaceAdjust && a.confidence >= autoApplyWhitespaceConfidence {
		return true
	}
	return a.confidence >= autoApplyAnyConfidence
}

func (a analysis) summary() string {
	return fmt.Sprintf("%d match, %d whitespace, %d content, %d missing, %d extra",
		a.match, a.whitespace, a.content, a.missing, a.extra)
}

// analyzeRecovery compares searchLines against the document region
// beginning at start, using a line-level diff (diffmatchpatch's line
// mode) to classify each line as Match/Whitespace/Content/Missing/Extra,
// then applies the classification table to pick a method and confidence.
func analyzeRecovery(docLines, searchLines []string, start int) analysis {
	windowLen := len(searchLines)
	end := start + windowLen
	if end > len(docLines) {
		end = len(docLines)
	}
	region := docLines[start:end]

	a := analysis{start: start}
	classifyLines(searchLines, region, &a)

	switch {
	case a.content == 0 && a.missing == 0 && a.extra == 0 && a.whitespace > 0:
		a.method = MethodWhitespaceAdjust
		a.confidence = 0.95
	case a.content <= 2 && a.missing == 0 && a.extra == 0 && a.matchRatio() >= 0.8:
		a.method = MethodPartialMatch
		a.confidence = a.matchRatio() * 0.9
	case a.missing <= 1 && a.extra <= 1 && a.content == 0:
		a.method = MethodLineReorder
		a.confidence = 0.7
	default:
		a.method = MethodNone
		a.confidence = 0
	}
	return a
}

// classifyLines runs a line-mode diff between search and region and
// tallies per-line classifications into a.
func classifyLines(search, region []string, a *analysis) {
	searchText := strings.Join(search, "\n")
	regionText := strings.Join(region, "\n")

	lineText1, lineText2, lineArray := dmp.DiffLinesToChars(searchText, regionText)
	diffs := dmp.DiffMain(lineText1, lineText2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	pending := ""
	pendingIsDelete := false

	flush := func() {
		pending = ""
		pendingIsDelete = false
	}

	for _, d := range diffs {
		lines := splitNonEmpty(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			a.match += len(lines)
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				if pendingIsDelete {
					a.missing++
				}
				pending = l
				pendingIsDelete = true
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				if pendingIsDelete {
					classifyPair(pending, l, a)
					flush()
				} else {
					a.extra++
				}
			}
		}
	}
	if pendingIsDelete {
		a.missing++
	}
}

func classifyPair(searchLine, docLine string, a *analysis) {
	if searchLine == docLine {
		a.match++
		return
	}
	if whitespaceClass(searchLine) == whitespaceClass(docLine) && strings.TrimSpace(searchLine) == strings.TrimSpace(docLine) {
		a.whitespace++
		return
	}
	if strings.TrimSpace(searchLine) == strings.TrimSpace(docLine) {
		a.whitespace++
		return
	}
	a.content++
}

// whitespaceClass distinguishes leading-indent drift, trailing-space
// drift, and tabs-vs-spaces, for diagnostic purposes on whitespace-only
// differences (used only to keep the classification legible; equality
// of trimmed content already decided match vs. content above).
func whitespaceClass(line string) string {
	leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	trailing := line[len(strings.TrimRight(line, " \t")):]
	var b strings.Builder
	if strings.Contains(leading, "\t") {
		b.WriteString("tab-indent;")
	} else if leading != "" {
		b.WriteString("space-indent;")
	}
	if trailing != "" {
		b.WriteString("trailing;")
	}
	return b.String()
}

func splitNonEmpty(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// buildWhitespaceAdjustedFix emits a synthetic search text whose lines
// take the file's whitespace where the trimmed content matches, keeping
// the original search lines where content differs, and returns the byte
// range it replaces (the matcher is not re-invoked for a
// whitespace-adjust fix). The range is computed over docLines, i.e. in
// the LF-normalized text splitLines produced; callers must convert it
// back via matcher.LFOffsetToOriginal before using it against the real
// document.
func buildWhitespaceAdjustedFix(docLines, searchLines []string, start int) (applier.ByteRange, string) {
	end := start + len(searchLines)
	if end > len(docLines) {
		end = len(docLines)
	}

	adjusted := make([]string, 0, len(searchLines))
	for i, sLine := range searchLines {
		docIdx := start + i
		if docIdx < end && strings.TrimSpace(docLines[docIdx]) == strings.TrimSpace(sLine) {
			adjusted = append(adjusted, docLines[docIdx])
		} else {
			adjusted = append(adjusted, sLine)
		}
	}

	byteStart := 0
	for i := 0; i < start; i++ {
		byteStart += len(docLines[i]) + 1
	}
	byteEnd := byteStart
	for i := start; i < end; i++ {
		byteEnd += len(docLines[i])
		if i != end-1 {
			byteEnd++
		}
	}

	return applier.ByteRange{Start: byteStart, End: byteEnd}, strings.Join(adjusted, "\n")
}
