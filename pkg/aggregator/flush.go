package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/hunk"
	"github.com/thehowl/patchy/pkg/matcher"
	"github.com/thehowl/patchy/pkg/recovery"
	"github.com/thehowl/patchy/pkg/storage"
	"go.uber.org/multierr"
)

type pendingEdit struct {
	blockIndex int
	edit       applier.Edit
}

// Flush applies every queued hunk for the normalized path k as a single
// atomic multi-range edit, following spec.md §4.5's eight-step
// algorithm, and removes k from the queue afterward.
func (a *Aggregator) Flush(ctx context.Context, k string) FileResult {
	entry, ok := a.queues[k]
	delete(a.queues, k)
	a.order = removeKey(a.order, k)
	if !ok {
		return FileResult{Success: true}
	}

	total := len(entry.hunks)

	if !a.App.Exists(ctx, k) {
		errs := make([]string, total)
		for i := range errs {
			errs[i] = fmt.Sprintf("file %q does not exist", k)
		}
		a.record(diagnostics.Event{FilePath: k, Type: diagnostics.EventResult, Data: diagnostics.ResultData{
			Success: false, Applied: 0, Total: total, Errors: errs,
		}})
		return FileResult{Success: false, Applied: 0, Total: total, Errors: errs}
	}

	docBytes, err := a.App.Read(ctx, k)
	if err != nil {
		errs := []string{fmt.Sprintf("read %q: %v", k, err)}
		return FileResult{Success: false, Applied: 0, Total: total, Errors: errs}
	}
	doc := string(docBytes)

	var pending []pendingEdit
	var errs []string

	for i, qh := range entry.hunks {
		opts := matcher.Options{LineRangeExpansion: 30, UseAnchors: true}
		if qh.h.StartLineHint != nil && qh.h.EndLineHint != nil {
			opts.LineRangeHint = &matcher.LineRangeHint{Start: *qh.h.StartLineHint, End: *qh.h.EndLineHint}
		}

		res := matcher.New(doc).Find(qh.h.SearchText, opts)
		a.record(diagnostics.Event{FilePath: k, Type: diagnostics.EventMatchAttempt, Data: diagnostics.MatchAttemptData{
			BlockIndex: i, Strategy: string(res.Strategy), Success: res.Found,
		}})

		if res.Found {
			replacement := matcher.ApplyLineEndingPolicy(doc, qh.h.ReplaceText)
			pending = append(pending, pendingEdit{blockIndex: i, edit: applier.Edit{
				Range:       applier.ByteRange{Start: res.Start, End: res.End},
				Replacement: replacement,
			}})
			continue
		}

		var symbolLookup recovery.SymbolLookup
		if a.Symbols != nil {
			symbolLookup = func(ctx context.Context) ([]applier.Symbol, error) {
				return a.Symbols.DocumentSymbols(ctx, k)
			}
		}
		rec := recovery.Attempt(ctx, doc, qh.h.SearchText, recovery.Options{Symbols: symbolLookup})
		if rec.AutoApply {
			replacement := matcher.ApplyLineEndingPolicy(doc, qh.h.ReplaceText)
			pending = append(pending, pendingEdit{blockIndex: i, edit: applier.Edit{
				Range:       rec.Range,
				Replacement: replacement,
			}})
			continue
		}

		best := bestSuggestionSummary(rec)
		bundleID := a.captureFailureBundle(ctx, doc, qh.h)
		a.record(diagnostics.Event{FilePath: k, Type: diagnostics.EventMatchFail, Data: diagnostics.MatchFailData{
			BlockIndex:  i,
			BestSimilar: best,
			FileLength:  len(doc),
			BundleID:    bundleID,
		}})
		msg := fmt.Sprintf("block %d: SEARCH not found (%.0f%% similar exists)", i, best.Similarity*100)
		if bundleID != "" {
			msg += fmt.Sprintf("; bundle %s", bundleID)
		}
		errs = append(errs, msg)
	}

	pending, overlapErrs := dropOverlaps(pending)
	errs = append(errs, overlapErrs...)

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].edit.Range.Start > pending[j].edit.Range.Start
	})

	edits := make([]applier.Edit, len(pending))
	for i, p := range pending {
		edits[i] = p.edit
	}

	applied := 0
	if len(edits) > 0 {
		if err := a.App.ApplyAtomic(ctx, k, edits); err != nil {
			errs = append(errs, fmt.Sprintf("editor rejected batched edit: %v", err))
		} else {
			applied = len(edits)
		}
	}

	success := applied == total
	a.record(diagnostics.Event{FilePath: k, Type: diagnostics.EventResult, Data: diagnostics.ResultData{
		Success: success, Applied: applied, Total: total, Errors: errs,
	}})

	return FileResult{Success: success, Applied: applied, Total: total, Errors: errs}
}

func bestSuggestionSummary(rec recovery.Result) diagnostics.SimilarRegion {
	if len(rec.Suggestions) == 0 {
		return diagnostics.SimilarRegion{}
	}
	top := rec.Suggestions[0]
	return diagnostics.SimilarRegion{
		Text:       top.DiffSummary,
		Similarity: top.Confidence,
		Line:       top.StartLine,
	}
}

// dropOverlaps implements the Open Question resolution: two ranges
// overlap iff neither ends strictly before the other begins; when that
// happens, keep whichever was enqueued earlier and report the other as
// failed.
func dropOverlaps(pending []pendingEdit) ([]pendingEdit, []string) {
	kept := make([]pendingEdit, 0, len(pending))
	var errs []string

	for _, p := range pending {
		overlapsKept := false
		for _, k := range kept {
			if overlaps(p.edit.Range, k.edit.Range) {
				overlapsKept = true
				break
			}
		}
		if overlapsKept {
			errs = append(errs, fmt.Sprintf("block %d: overlaps an earlier hunk", p.blockIndex))
			continue
		}
		kept = append(kept, p)
	}
	return kept, errs
}

func overlaps(a, b applier.ByteRange) bool {
	return !(a.End <= b.Start || b.End <= a.Start)
}

// captureFailureBundle stores a replayable snapshot of a failed block
// (the file as it stood at flush time, plus its SEARCH/REPLACE text) so
// pkg/webui's bundle-diff route can show a human why the match missed.
// Returns "" if bundle capture is disabled or either step fails; build
// and store errors are combined into one diagnostic event rather than
// silently dropped, mirroring how this codebase reports a failed upload cleanup
// alongside the error that triggered it.
func (a *Aggregator) captureFailureBundle(ctx context.Context, doc string, h hunk.Hunk) string {
	if a.Bundles == nil {
		return ""
	}

	rawHunk := "<<<<<<< SEARCH\n" + h.SearchText + "\n=======\n" + h.ReplaceText + "\n>>>>>>> REPLACE\n"
	id, archive, buildErr := storage.BuildArchive(storage.Bundle{
		Original:  []byte(doc),
		HunkText:  rawHunk,
		CreatedAt: time.Now(),
	})

	var putErr error
	if buildErr == nil {
		putErr = a.Bundles.Put(ctx, id, archive)
	}

	if err := multierr.Combine(buildErr, putErr); err != nil {
		a.record(diagnostics.Event{Type: diagnostics.EventMatchFail, Data: fmt.Sprintf("bundle capture failed: %v", err)})
		return ""
	}
	return id
}

func removeKey(keys []string, target string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != target {
			out = append(out, k)
		}
	}
	return out
}
