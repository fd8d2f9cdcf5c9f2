package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExactTier1(t *testing.T) {
	m := New("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	r := m.Find("func main() {\n\tprintln(\"hi\")\n}", Options{})
	require.True(t, r.Found)
	assert.Equal(t, StrategyExact, r.Strategy)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestFindExactTier1CRLFDocumentLFSearch(t *testing.T) {
	m := New("alpha\r\nbeta\r\ngamma\r\n")
	r := m.Find("beta", Options{})
	require.True(t, r.Found)
	assert.Equal(t, StrategyExact, r.Strategy)
	assert.Equal(t, "beta", m.doc[r.Start:r.End])
}

func TestFindWhitespaceNormalizedTier2(t *testing.T) {
	doc := "func foo() {\n    return 1\n}\n"
	search := "func foo() {\n\t\treturn 1\n}" // each tab normalizes to two spaces
	m := New(doc)
	r := m.Find(search, Options{})
	require.True(t, r.Found)
	assert.Equal(t, StrategyWhitespaceNormalized, r.Strategy)
	assert.InDelta(t, 0.95, r.Confidence, 0.0001)
}

func TestFindLineTolerantTier3(t *testing.T) {
	doc := "one\ntwo\nTHREE changed\nfour\nfive\n"
	search := "one\ntwo\nthree\nfour\nfive"
	m := New(doc)
	r := m.Find(search, Options{})
	require.True(t, r.Found)
	assert.Equal(t, StrategyLineTolerant, r.Strategy)
	assert.True(t, r.Confidence >= 0.7)
}

func TestFindAnchorBasedTier4(t *testing.T) {
	doc := "package widgets\n\n" +
		"func unrelated() {}\n\n" +
		"func ComputeTotal(items []Item) int {\n" +
		"    total := 0\n" +
		"    for _, it := range items {\n" +
		"        totall += it.Price\n" +
		"    }\n" +
		"    return total\n" +
		"}\n"
	search := "func ComputeTotal(items []Item) int {\n" +
		"    total := 0\n" +
		"    for _, it := range items {\n" +
		"        total += it.Price\n" +
		"    }\n" +
		"    return total\n" +
		"}"
	m := New(doc)
	// A stale hint pointing at the top of the file keeps Tier 3 from
	// reaching the real region, so only the anchor search can find it.
	r := m.Find(search, Options{
		UseAnchors:         true,
		MaxLineDiffs:       1,
		LineRangeHint:      &LineRangeHint{Start: 1, End: 1},
		LineRangeExpansion: 1,
	})
	require.True(t, r.Found)
	assert.Equal(t, StrategyAnchorBased, r.Strategy)
}

func TestFindFuzzyConstrainedTier5(t *testing.T) {
	doc := "config := Settings{\n    Retries: 3,\n    Timeout: thirty,\n}\n"
	search := "config := Settings{\n    Retries: 3\n    Timeout: thirty seconds\n}"
	m := New(doc)
	// Two lines differ in content; MaxLineDiffs 1 keeps Tier 3 from accepting them.
	r := m.Find(search, Options{MaxLineDiffs: 1, MinFuzzyConfidence: 0.5})
	require.True(t, r.Found)
	assert.Equal(t, StrategyFuzzyConstrained, r.Strategy)
}

func TestFindMissReturnsNone(t *testing.T) {
	m := New("alpha\nbeta\ngamma\n")
	// Three unrelated lines: more content diffs than Tier 3 tolerates.
	r := m.Find("this text does not\nappear anywhere\nnear here", Options{})
	assert.False(t, r.Found)
	assert.Equal(t, StrategyNone, r.Strategy)
}

func TestApplyLineEndingPolicyTranslatesToCRLF(t *testing.T) {
	out := ApplyLineEndingPolicy("a\r\nb\r\n", "x\ny")
	assert.Equal(t, "x\r\ny", out)
}

func TestApplyLineEndingPolicyLeavesLFUnchanged(t *testing.T) {
	out := ApplyLineEndingPolicy("a\nb\n", "x\ny")
	assert.Equal(t, "x\ny", out)
}

func TestApplyLineEndingPolicyLeavesMixedReplacementAlone(t *testing.T) {
	out := ApplyLineEndingPolicy("a\r\nb\r\n", "x\r\ny")
	assert.Equal(t, "x\r\ny", out)
}

func TestTokenJaccardAndLineSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, LineSimilarity("  same  ", "same"))
	assert.Equal(t, 0.5, LineSimilarity("", "not blank"))
	assert.True(t, TokenJaccard("foo bar baz", "foo bar qux") > 0)
}

func TestStopsAtFirstHitTier(t *testing.T) {
	// An exact match must win even when the text would also satisfy
	// looser tiers; Find must not keep searching after Tier 1 hits.
	m := New("same\nsame\n")
	r := m.Find("same", Options{})
	assert.Equal(t, StrategyExact, r.Strategy)
}
