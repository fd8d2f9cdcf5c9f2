package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thehowl/patchy/pkg/applier"
)

func TestAttemptWhitespaceAdjustAutoApplies(t *testing.T) {
	doc := "func f() {\n\t\treturn v;\n}\n"
	search := "func f() {\n    return v;\n}"

	r := Attempt(context.Background(), doc, search, Options{})
	require.True(t, r.AutoApply)
	assert.Contains(t, r.AdjustedSearch, "\t\treturn v;")
}

func TestAttemptPartialMatchSuggestion(t *testing.T) {
	doc := "func g() {\n\tfoo()\n\tbarChanged()\n\tbaz()\n}\n"
	search := "func g() {\n\tfoo()\n\tbar()\n\tbaz()\n}"

	r := Attempt(context.Background(), doc, search, Options{})
	if !r.AutoApply {
		require.NotEmpty(t, r.Suggestions)
		assert.Equal(t, MethodPartialMatch, r.Suggestions[0].Method)
	}
}

func TestAttemptNoCandidatesReturnsEmptyResult(t *testing.T) {
	doc := "totally unrelated content\nwith no overlap at all\n"
	search := "something entirely different that never appears"

	r := Attempt(context.Background(), doc, search, Options{})
	assert.False(t, r.AutoApply)
	assert.Empty(t, r.Suggestions)
}

func TestAttemptSuggestionsCappedAtFive(t *testing.T) {
	doc := ""
	for i := 0; i < 10; i++ {
		doc += "searchLineXYZ\n"
	}
	search := "searchLineXYZ"

	r := Attempt(context.Background(), doc, search, Options{})
	assert.LessOrEqual(t, len(r.Suggestions), maxSuggestions)
}

func TestBuildWhitespaceAdjustedFixPreservesNonWhitespaceBytes(t *testing.T) {
	docLines := []string{"func f() {", "\t\treturn v;", "}"}
	searchLines := []string{"func f() {", "    return v;", "}"}

	rng, adjusted := buildWhitespaceAdjustedFix(docLines, searchLines, 0)
	assert.Equal(t, "func f() {\n\t\treturn v;\n}", adjusted)
	assert.Equal(t, 0, rng.Start)
}

// TestAttemptWhitespaceAdjustAutoAppliesOnCRLFDocument mirrors
// pkg/matcher's TestFindExactTier1CRLFDocumentLFSearch: a CRLF document
// preceded by a line, so that an off-by-one LF-offset conversion would
// shift the returned range into the middle of "prefix" or "return v;"
// instead of landing exactly on the whitespace-adjusted line.
func TestAttemptWhitespaceAdjustAutoAppliesOnCRLFDocument(t *testing.T) {
	doc := "prefix\r\nfunc f() {\r\n\t\treturn v;\r\n}\r\n"
	search := "func f() {\n    return v;\n}"

	r := Attempt(context.Background(), doc, search, Options{})
	require.True(t, r.AutoApply)
	require.True(t, r.Range.End <= len(doc))
	assert.Equal(t, "func f() {\r\n\t\treturn v;\r\n}", doc[r.Range.Start:r.Range.End])
}

func TestTrySymbolFallbackOnCRLFDocument(t *testing.T) {
	doc := "package p\r\n\r\nfunc Foo() {\r\n\treturn 1\r\n}\r\n"
	search := "func Foo() {\n\treturn 1\n}"

	lookup := func(ctx context.Context) ([]applier.Symbol, error) {
		return []applier.Symbol{{Name: "Foo", Kind: applier.SymbolKindFunction, Line: 3}}, nil
	}

	r, ok := trySymbolFallback(context.Background(), doc, search, lookup)
	require.True(t, ok)
	require.True(t, r.Range.End <= len(doc))
	assert.Equal(t, "func Foo() {\r\n\treturn 1\r\n}", doc[r.Range.Start:r.Range.End])
}
