// Package diagnostics defines the structured, append-only event record
// emitted by the engine at each stage of handling a hunk, and the sinks
// that persist it.
package diagnostics

import "time"

// EventType names one of the six diagnostic event kinds the engine emits.
type EventType string

const (
	EventReceived     EventType = "received"
	EventParsed       EventType = "parsed"
	EventValidated    EventType = "validated"
	EventMatchAttempt EventType = "match_attempt"
	EventMatchFail    EventType = "match_fail"
	EventResult       EventType = "result"
)

// Event is one append-only diagnostic record.
type Event struct {
	Timestamp time.Time // ISO-8601 UTC on the wire
	Type      EventType
	TaskID    string // optional
	FilePath  string
	Data      any
}

// ReceivedData is the payload of an EventReceived event.
type ReceivedData struct {
	RawLength            int
	ContainsSearchMarker bool
	ContainsReplaceMarker bool
	LineCount            int
}

// ParsedBlock is one block's summary within a ParsedData payload.
type ParsedBlock struct {
	SearchLen    int
	ReplaceLen   int
	SearchLines  int
	ReplaceLines int
	StartHint    *int
	EndHint      *int
}

// ParsedData is the payload of an EventParsed event.
type ParsedData struct {
	BlockCount int
	ParseMs    float64
	Blocks     []ParsedBlock
}

// ValidatedData is the payload of an EventValidated event: every issue
// the parser's validation pass found, including ones that only
// triggered a warning and didn't drop their hunk.
type ValidatedData struct {
	IssueCount int
	Issues     []ValidationIssue
}

// ValidationIssue mirrors hunk.Issue without importing pkg/hunk, keeping
// diagnostics free of a dependency on the parser package.
type ValidationIssue struct {
	Kind      string
	HunkIndex int
	Message   string
	Dropped   bool // true if the issue's severity dropped the hunk
}

// MatchAttemptData is the payload of an EventMatchAttempt event.
type MatchAttemptData struct {
	BlockIndex int
	Strategy   string
	Success    bool
	Details    string
}

// SimilarRegion names the best near-miss the engine found for a failed
// match, used in both MatchFailData and the per-file Result.
type SimilarRegion struct {
	Text       string
	Similarity float64
	Line       int
}

// MatchFailData is the payload of an EventMatchFail event.
type MatchFailData struct {
	BlockIndex  int
	BestSimilar SimilarRegion
	FileLength  int
	BundleID    string // set if a diagnostic bundle was captured for this failure
}

// ResultData is the payload of an EventResult event.
type ResultData struct {
	Success bool
	Applied int
	Total   int
	Errors  []string
}

// Sink accepts diagnostic events. The core never reads them back; it is
// purely an append-only side channel for observability.
type Sink interface {
	Record(e Event) error
}
