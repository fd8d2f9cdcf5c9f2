package hunk

import (
	"regexp"
	"strconv"
	"strings"
)

// Marker line patterns. Anchoring the whole line and requiring a literal,
// non-marker character (a space, or end of line) immediately after the
// run of 7 symbols is what rejects 6-or-8-in-a-row inputs: a regexp/v2
// quirk the legacy `<<<<<<?` pattern this replaces got wrong.
var (
	searchLineRe  = regexp.MustCompile(`^<{7} SEARCH(?:\s*@@\s*(\d+)(?:\s*-\s*(\d+))?\s*@@)?\s*\r?$`)
	dividerLineRe = regexp.MustCompile(`^={7}\s*\r?$`)
	replaceLineRe = regexp.MustCompile(`^>{7} REPLACE\s*\r?$`)
	fenceRe       = regexp.MustCompile("(?s)```(?:diff|patch)?\r?\n(.*?)\r?\n```")
)

// Parse extracts hunks from raw in document order. An empty, issue-free
// result means raw contained no hunk-shaped region at all; callers treat
// that as a user-level failure, not a parser bug.
func Parse(raw string) ([]Hunk, []Issue) {
	hunks, issues := parseGrammar(raw)
	if len(hunks) > 0 {
		return hunks, issues
	}

	// Primary grammar found nothing: retry inside markdown fences.
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		fh, fi := parseGrammar(m[1])
		hunks = append(hunks, fh...)
		issues = append(issues, fi...)
	}
	return hunks, issues
}

type rawBlock struct {
	searchLines []string
	replaceLines []string
	originLine  int
	startHint   *int
	endHint     *int
}

func parseGrammar(text string) ([]Hunk, []Issue) {
	lines := strings.Split(text, "\n")

	var blocks []rawBlock
	var cur *rawBlock
	state := "idle"

	for i, line := range lines {
		switch state {
		case "idle":
			if m := searchLineRe.FindStringSubmatch(line); m != nil {
				cur = &rawBlock{originLine: i + 1}
				if m[1] != "" {
					start, _ := strconv.Atoi(m[1])
					end := start
					if m[2] != "" {
						end, _ = strconv.Atoi(m[2])
					}
					cur.startHint = &start
					cur.endHint = &end
				}
				state = "in_search"
			}

		case "in_search":
			if dividerLineRe.MatchString(line) {
				state = "in_replace"
			} else {
				cur.searchLines = append(cur.searchLines, line)
			}

		case "in_replace":
			if replaceLineRe.MatchString(line) {
				blocks = append(blocks, *cur)
				cur = nil
				state = "idle"
			} else {
				cur.replaceLines = append(cur.replaceLines, line)
			}
		}
	}
	// A trailing incomplete block (state != idle at EOF) is silently
	// dropped: it is indistinguishable from truncated model output and
	// the caller has no partial hunk to act on.

	var hunks []Hunk
	var issues []Issue
	for idx, b := range blocks {
		search := sanitizeTrailingMarkerArtifact(strings.Join(b.searchLines, "\n"))
		replace := sanitizeTrailingMarkerArtifact(strings.Join(b.replaceLines, "\n"))

		blockIssues := validate(search, replace)
		hasError := false
		for _, iss := range blockIssues {
			iss.HunkIndex = idx
			issues = append(issues, iss)
			if iss.Severity() == SeverityError {
				hasError = true
			}
		}
		if hasError {
			continue
		}

		hunks = append(hunks, Hunk{
			SearchText:    search,
			ReplaceText:   replace,
			OriginOffset:  b.originLine,
			StartLineHint: b.startHint,
			EndLineHint:   b.endHint,
		})
	}

	return hunks, issues
}

// sanitizeTrailingMarkerArtifact strips a single trailing "\n?>" left
// behind by over-eager capture of the closing marker line.
func sanitizeTrailingMarkerArtifact(s string) string {
	switch {
	case strings.HasSuffix(s, "\n>"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, ">"):
		return s[:len(s)-1]
	default:
		return s
	}
}
