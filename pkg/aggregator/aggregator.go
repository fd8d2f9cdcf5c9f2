// Package aggregator batches hunks per file within a turn and applies
// them atomically, enforcing the single-active-file invariant and
// descending-order application that together guarantee no offset drift.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/hunk"
	"github.com/thehowl/patchy/pkg/storage"
)

// queuedHunk is one hunk plus the source label it arrived with.
type queuedHunk struct {
	h      hunk.Hunk
	source string
}

// queueEntry is the per-file ordered hunk list described in spec.md §3.
type queueEntry struct {
	path  string
	hunks []queuedHunk
}

// Aggregator owns the queue for the duration of one turn. It is not
// safe for concurrent use by multiple goroutines on the same instance;
// concurrent use across distinct files requires a caller-held lock
// keyed by normalized path, held for the whole of that path's Flush.
type Aggregator struct {
	App     applier.Applier
	Sink    diagnostics.Sink
	Symbols applier.SymbolProvider // optional
	Bundles storage.Storage        // optional: capture a diagnostic bundle on every match failure

	queues map[string]*queueEntry
	order  []string
}

// New constructs an Aggregator. app and sink are required; symbols may
// be nil if the host does not expose document symbols. Set Bundles
// directly on the returned value to enable failure-bundle capture.
func New(app applier.Applier, sink diagnostics.Sink, symbols applier.SymbolProvider) *Aggregator {
	return &Aggregator{
		App:     app,
		Sink:    sink,
		Symbols: symbols,
		queues:  make(map[string]*queueEntry),
	}
}

// QueueResult is returned by Queue.
type QueueResult struct {
	Queued bool
	Err    error
	Issues []hunk.Issue
}

// Queue parses text and enqueues its hunks against path. If path already
// has a queue, the new hunks are appended to it. Otherwise, if any other
// key currently holds queued hunks, every queued file is flushed first
// (the single-active-file invariant), and a new queue is started for
// path.
func (a *Aggregator) Queue(ctx context.Context, path, text, source string) QueueResult {
	a.record(diagnostics.Event{FilePath: path, Type: diagnostics.EventReceived, Data: diagnostics.ReceivedData{
		RawLength:             len(text),
		ContainsSearchMarker:  strings.Contains(text, "<<<<<<< SEARCH"),
		ContainsReplaceMarker: strings.Contains(text, ">>>>>>> REPLACE"),
		LineCount:             strings.Count(text, "\n") + 1,
	}})

	parseStart := time.Now()
	hunks, issues := hunk.Parse(text)
	parseMs := float64(time.Since(parseStart)) / float64(time.Millisecond)

	blocks := make([]diagnostics.ParsedBlock, len(hunks))
	for i, h := range hunks {
		blocks[i] = diagnostics.ParsedBlock{
			SearchLen:    len(h.SearchText),
			ReplaceLen:   len(h.ReplaceText),
			SearchLines:  strings.Count(h.SearchText, "\n") + 1,
			ReplaceLines: strings.Count(h.ReplaceText, "\n") + 1,
			StartHint:    h.StartLineHint,
			EndHint:      h.EndLineHint,
		}
	}
	a.record(diagnostics.Event{FilePath: path, Type: diagnostics.EventParsed, Data: diagnostics.ParsedData{
		BlockCount: len(hunks), ParseMs: parseMs, Blocks: blocks,
	}})

	if len(issues) > 0 {
		vIssues := make([]diagnostics.ValidationIssue, len(issues))
		for i, iss := range issues {
			vIssues[i] = diagnostics.ValidationIssue{
				Kind: string(iss.Kind), HunkIndex: iss.HunkIndex, Message: iss.Message,
				Dropped: iss.Severity() == hunk.SeverityError,
			}
		}
		a.record(diagnostics.Event{FilePath: path, Type: diagnostics.EventValidated, Data: diagnostics.ValidatedData{
			IssueCount: len(issues), Issues: vIssues,
		}})
	}

	if len(hunks) == 0 {
		return QueueResult{Err: fmt.Errorf("aggregator: %q contains no SEARCH/REPLACE blocks", path), Issues: issues}
	}

	k, err := normalizePath(path)
	if err != nil {
		return QueueResult{Err: err, Issues: issues}
	}

	if entry, ok := a.queues[k]; ok {
		for _, h := range hunks {
			entry.hunks = append(entry.hunks, queuedHunk{h: h, source: source})
		}
		return QueueResult{Queued: true, Issues: issues}
	}

	if len(a.queues) > 0 {
		a.FlushAll(ctx)
	}

	entry := &queueEntry{path: k}
	for _, h := range hunks {
		entry.hunks = append(entry.hunks, queuedHunk{h: h, source: source})
	}
	a.queues[k] = entry
	a.order = append(a.order, k)

	return QueueResult{Queued: true, Issues: issues}
}

// FileResult is the exit status of one file's flush.
type FileResult struct {
	Success bool
	Applied int
	Total   int
	Errors  []string
}

// FlushAll flushes every currently queued file, snapshotting the key
// list first so flushing one file cannot affect iteration over the
// rest.
func (a *Aggregator) FlushAll(ctx context.Context) map[string]FileResult {
	keys := make([]string, len(a.order))
	copy(keys, a.order)

	results := make(map[string]FileResult, len(keys))
	for _, k := range keys {
		if _, ok := a.queues[k]; !ok {
			continue
		}
		results[k] = a.Flush(ctx, k)
	}
	return results
}

// Clear drops all queued state without applying anything.
func (a *Aggregator) Clear() {
	a.queues = make(map[string]*queueEntry)
	a.order = nil
}

func (a *Aggregator) record(e diagnostics.Event) {
	if a.Sink == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_ = a.Sink.Record(e)
}
