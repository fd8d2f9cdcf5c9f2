package webui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/thehowl/patchy/pkg/diff"
	"github.com/thehowl/patchy/pkg/hunk"
	"github.com/thehowl/patchy/pkg/matcher"
	"github.com/thehowl/patchy/pkg/ratelimit"
	"github.com/thehowl/patchy/pkg/recovery"
	"github.com/thehowl/patchy/pkg/storage"
	"github.com/thehowl/patchy/templates"
)

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if !isBrowser(r) {
		w.Header().Set(ctHeader, ctPlain)
		w.Write(s.usageString())
		return
	}
	templates.Templates.ExecuteTemplate(w, "index.tmpl", templates.IndexData{PublicURL: s.PublicURL})
}

// apply parses the "path"/"hunk"/"source" form fields, queues the hunks
// they describe, and immediately flushes that one file, returning a
// plain-text summary. There's no notion of a multi-request "turn" over
// HTTP, so every call queues and flushes its own file in one round trip.
func (s *Server) apply(w http.ResponseWriter, r *http.Request) error {
	if s.Aggregator == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("apply endpoint not configured\n"))
		return nil
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error: " + err.Error() + "\n"))
		return nil
	}

	path := r.FormValue("path")
	hunkText := r.FormValue("hunk")
	source := r.FormValue("source")
	if source == "" {
		source = "webui"
	}
	if path == "" || hunkText == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("path and hunk form fields are required\n"))
		return nil
	}

	if s.Limiter != nil {
		if err := s.Limiter.Check(r.RemoteAddr, uint64(len(hunkText))); err != nil {
			if errors.Is(err, ratelimit.ErrLimitsExceeded) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("rate limit exceeded for this week\n"))
				return nil
			}
			return err
		}
	}

	qr := s.Aggregator.Queue(r.Context(), path, hunkText, source)
	if qr.Err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error: " + qr.Err.Error() + "\n"))
		return nil
	}

	results := s.Aggregator.FlushAll(r.Context())

	w.Header().Set(ctHeader, ctPlain)
	ok := true
	for _, res := range results {
		fmt.Fprintf(w, "%d/%d applied\n", res.Applied, res.Total)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		ok = ok && res.Success
	}
	if !ok {
		w.WriteHeader(http.StatusConflict)
	}
	return nil
}

// events renders the diagnostic history recorded for a file. The file
// path is taken from everything after "/events/" so paths containing
// slashes work without escaping.
func (s *Server) events(w http.ResponseWriter, r *http.Request) error {
	if s.Events == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("event log not configured\n"))
		return nil
	}
	file := strings.TrimPrefix(r.URL.Path, "/events/")
	if file == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("missing file path\n"))
		return nil
	}

	events, err := s.Events.ForFile(file)
	if err != nil {
		return err
	}

	if !isBrowser(r) {
		w.Header().Set(ctHeader, ctPlain)
		for _, e := range events {
			fmt.Fprintf(w, "%s %s %+v\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Type, e.Data)
		}
		return nil
	}
	return templates.Templates.ExecuteTemplate(w, "events.tmpl", templates.EventsData{FilePath: file, Events: events})
}

// bundleDiff renders a unified diff between a failed hunk's SEARCH text
// and the closest region recovery could find in the bundled file
// snapshot, so a human can see why the match missed.
func (s *Server) bundleDiff(w http.ResponseWriter, r *http.Request) error {
	if s.Bundles == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("bundle storage not configured\n"))
		return nil
	}
	id := chi.URLParam(r, "id")

	archive, err := s.Bundles.Get(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found\n"))
			return nil
		}
		return err
	}

	bundle, err := storage.ExtractArchive(archive)
	if err != nil {
		return err
	}

	hunks, _ := hunk.Parse(bundle.HunkText)
	if len(hunks) == 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("bundle has no recoverable SEARCH block\n"))
		return nil
	}
	search := hunks[0].SearchText

	matchedText, matched := closestRegion(string(bundle.Original), search)

	qry := r.URL.Query()
	opts := diff.Options{Context: 3}
	space := qry.Get("w")
	switch space {
	case "w":
		opts.Normal = ignoreAllSpace
	case "b":
		opts.Normal = ignoreSpaceChange
	default:
		space = ""
	}
	if c, err := strconv.Atoi(qry.Get("c")); err == nil {
		opts.Context = max(0, min(1000, c))
	}

	unif := diff.DiffWithOptions("search (expected)", []byte(search), "closest region found", []byte(matchedText), opts)

	if !isBrowser(r) {
		w.Header().Set(ctHeader, ctPlain)
		w.Write([]byte(unif.String()))
		return nil
	}
	return templates.Templates.ExecuteTemplate(w, "diff.tmpl", &templates.DiffData{
		BundleID:      id,
		Diff:          unif,
		MatchedRegion: matched,
		Space:         space,
		Context:       opts.Context,
		Query:         qry,
	})
}

// closestRegion finds the best candidate region for search within doc
// via the full matcher cascade, falling back to Recovery's best-effort
// suggestion, and finally to the whole document if nothing comes close.
func closestRegion(doc, search string) (region string, found bool) {
	res := matcher.New(doc).Find(search, matcher.Options{UseAnchors: true})
	if res.Found {
		return doc[res.Start:res.End], true
	}

	rec := recovery.Attempt(context.Background(), doc, search, recovery.Options{})
	if rec.AutoApply {
		return doc[rec.Range.Start:rec.Range.End], true
	}
	if len(rec.Suggestions) > 0 {
		top := rec.Suggestions[0]
		docLines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
		searchLines := strings.Split(strings.ReplaceAll(search, "\r\n", "\n"), "\n")
		start := top.StartLine - 1
		end := start + len(searchLines)
		if start >= 0 && end <= len(docLines) {
			return strings.Join(docLines[start:end], "\n"), true
		}
	}
	return doc, false
}

func ignoreAllSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func ignoreSpaceChange(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
