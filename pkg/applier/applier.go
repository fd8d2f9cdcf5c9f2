// Package applier defines the minimal contract the matching and recovery
// code needs from a host editor, plus a LocalFS reference implementation
// usable from a CLI or from tests.
package applier

import "context"

// ByteRange is a half-open [Start, End) byte range within a document.
type ByteRange struct {
	Start, End int
}

// Edit pairs a byte range with its replacement text.
type Edit struct {
	Range       ByteRange
	Replacement string
}

// SymbolKind mirrors the coarse symbol kinds Recovery's symbol fallback
// scores against.
type SymbolKind string

const (
	SymbolKindClass     SymbolKind = "class"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindOther     SymbolKind = "other"
)

// Symbol is one document symbol as reported by an optional host provider.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Line   int // 1-indexed
	Detail string
}

// Applier is the minimal contract matcher/recovery/aggregator code
// depends on. Read and Exists are required; ApplyAtomic performs the
// single batched edit a flush produces.
type Applier interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	ApplyAtomic(ctx context.Context, path string, edits []Edit) error
}

// SymbolProvider is optional: hosts that expose document symbols let
// Recovery's symbol fallback narrow the search window.
type SymbolProvider interface {
	DocumentSymbols(ctx context.Context, path string) ([]Symbol, error)
}

// DiffPresenter is optional: hosts that can render a diff to the user.
type DiffPresenter interface {
	ShowDiff(ctx context.Context, original, modified []byte, title string) error
}
